package service

import (
	"context"
	"log/slog"

	"github.com/glintapp/glint-core/internal/adapter/ws"
	"github.com/glintapp/glint-core/internal/domain/generation"
)

// OnWorkListRefreshed merges freshly loaded persisted state into the task
// registry. It runs whenever an owner's work list is (re)loaded from the
// store, regardless of which actor triggered the load.
//
// The merge is one-directional: newer persisted state overwrites stale cached
// snapshots; in-memory state is never written back into the fresh list. This
// heals the case where a terminal write succeeded but the poller's own
// re-fetch did not, leaving the registry holding a synthesized snapshot.
func (e *Engine) OnWorkListRefreshed(ctx context.Context, fresh []generation.WorkRecord) {
	if len(fresh) == 0 {
		return
	}

	byID := make(map[string]*generation.WorkRecord, len(fresh))
	for i := range fresh {
		byID[fresh[i].ID] = &fresh[i]
	}

	for _, t := range e.registry.Snapshot() {
		rec, ok := byID[t.WorkID]
		if !ok {
			continue
		}
		if t.Work != nil && rec.UpdatedAt.Before(t.Work.UpdatedAt) {
			// The list is staler than what this row already observed.
			continue
		}

		changed := rec.Status != t.Status || rec.FirstResultRef() != t.ResultRef

		snap := *rec
		merged := t
		merged.Work = &snap
		if changed {
			merged.Status = rec.Status
			merged.ResultRef = rec.FirstResultRef()
			if rec.Status == generation.StatusFailed && merged.Error == "" {
				merged.Error = "generation failed"
			}
		}

		// Apply enforces the terminal invariant, so a pending record from a
		// missed store write can never drag a finished task backwards.
		if !e.registry.Apply(merged) || !changed {
			continue
		}

		slog.Info("task reconciled from work list", "task_id", t.ID, "status", merged.Status)
		if merged.Status.Terminal() {
			e.notifyTerminal(ctx, merged)
		} else if e.hub != nil {
			e.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatus(merged))
		}
	}
}
