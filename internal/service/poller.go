package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	glintotel "github.com/glintapp/glint-core/internal/adapter/otel"
	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
)

// Poll performs one status query for a pending poll-model task and applies the
// outcome. It is a single-shot, idempotent operation: callers (the scheduler
// or the client's own loop) invoke it repeatedly while the task is pending.
//
// A transient query failure never flips a task to failed; the task is returned
// unchanged and the next call tries again. Only an authoritative terminal
// signal from the job queue ends the lifecycle. An unrecognized remote status
// is terminal failure, so polling cannot loop forever on it.
//
// Polls for the same task are serialized internally; polls for different
// tasks proceed concurrently without coordination.
func (e *Engine) Poll(ctx context.Context, taskID string) (*generation.Task, error) {
	mu := e.pollLock(taskID)
	mu.Lock()
	defer mu.Unlock()

	t, ok := e.registry.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("poll task %s: %w", taskID, domain.ErrNotFound)
	}
	if t.Status.Terminal() {
		// Repeated terminal polls observe the same value; no query, no write.
		return &t, nil
	}
	if t.Kind.Background() {
		// The background backend has no status endpoint; completion arrives
		// through the executor.
		return &t, nil
	}

	ctx, span := glintotel.StartPollSpan(ctx, t.ID, string(t.Kind))
	defer span.End()

	start := e.now()
	st, err := e.queue.QueryStatus(ctx, t.ID, t.Kind)
	if e.metrics != nil {
		e.metrics.PollDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		// Transient: absorbed, status unchanged, no persisted write.
		slog.Debug("status query failed, will retry", "task_id", t.ID, "error", err)
		return &t, nil
	}

	status, resultRef, errMsg := classify(st)
	if status == generation.StatusPending {
		return &t, nil
	}

	rkind := generation.ResultKind("")
	if status == generation.StatusSuccess {
		rkind = resultKindOf(st)
	}
	updated := e.finalizeTerminal(ctx, t, status, resultRef, errMsg, rkind)
	return &updated, nil
}

// classify maps a remote status response onto the task lifecycle.
func classify(st *jobqueue.StatusResult) (status generation.Status, resultRef, errMsg string) {
	switch st.Status {
	case jobqueue.RemotePending:
		return generation.StatusPending, "", ""
	case jobqueue.RemoteSucceeded:
		ref := pickResultRef(st)
		if ref == "" {
			return generation.StatusFailed, "", "generation returned no result"
		}
		return generation.StatusSuccess, ref, ""
	case jobqueue.RemoteFailed:
		msg := st.Message
		if msg == "" {
			msg = "generation failed"
		}
		return generation.StatusFailed, "", msg
	case jobqueue.RemoteCanceled:
		return generation.StatusFailed, "", "generation canceled"
	default:
		// Stops the polling loop instead of spinning on a status this
		// engine cannot interpret.
		return generation.StatusFailed, "", "unrecognized status"
	}
}

// pickResultRef extracts the single result reference from a success response,
// preferring a video result over a still image, and falling back to the first
// entry of a multi-image response.
func pickResultRef(st *jobqueue.StatusResult) string {
	if st.VideoURL != "" {
		return st.VideoURL
	}
	if st.ImageURL != "" {
		return st.ImageURL
	}
	if len(st.ImageURLs) > 0 {
		return st.ImageURLs[0]
	}
	return ""
}

func resultKindOf(st *jobqueue.StatusResult) generation.ResultKind {
	if st.VideoURL != "" {
		return generation.ResultVideo
	}
	return generation.ResultImage
}
