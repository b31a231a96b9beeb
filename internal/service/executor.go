package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	glintotel "github.com/glintapp/glint-core/internal/adapter/otel"
	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
)

// finalizeGrace bounds the guaranteed terminal write after the execution
// context is already dead.
const finalizeGrace = 10 * time.Second

// runBackground executes a fire-and-forget job: submission and completion
// handling as one remote call. It is invoked exactly once per task, detached
// from Launch, and is never retried by this engine.
//
// Because no external retry exists for this path, the outermost defer
// guarantees a terminal failed write even on panic or a missed code path; a
// task on this path can never remain silently pending.
func (e *Engine) runBackground(t generation.Task, sub jobqueue.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), e.executeTimeout)
	defer cancel()

	ctx, span := glintotel.StartExecuteSpan(ctx, t.ID, string(t.Kind))
	defer span.End()

	finalized := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("background execution panicked", "task_id", t.ID, "panic", r)
		}
		if finalized {
			return
		}
		// The execution context may already be expired; the terminal write
		// gets its own deadline.
		fctx, fcancel := context.WithTimeout(context.Background(), finalizeGrace)
		defer fcancel()
		e.finalizeTerminal(fctx, t, generation.StatusFailed, "", "generation failed", "")
	}()

	res, err := e.queue.ExecuteOnce(ctx, sub)
	if err != nil {
		msg := "generation failed"
		var ib *domain.InsufficientBalanceError
		if errors.As(err, &ib) {
			// The backend owns the balance check on this path; the shortfall
			// surfaces as a terminal failure with the amounts embedded.
			msg = ib.Error()
		} else {
			slog.Error("background execution failed", "task_id", t.ID, "error", err)
		}
		e.finalizeTerminal(ctx, t, generation.StatusFailed, "", msg, "")
		finalized = true
		return
	}
	if res == nil || res.ResultRef == "" {
		e.finalizeTerminal(ctx, t, generation.StatusFailed, "", "generation returned no result", "")
		finalized = true
		return
	}

	e.finalizeTerminal(ctx, t, generation.StatusSuccess, res.ResultRef, "", sub.Meta.DefaultResultKind())
	finalized = true
}
