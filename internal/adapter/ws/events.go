package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/glintapp/glint-core/internal/domain/generation"
)

// Event type constants for WebSocket messages.
const (
	EventTaskStatus  = "task.status"
	EventTaskRemoved = "task.removed"
)

// TaskStatusEvent is broadcast when a generation task's status changes.
type TaskStatusEvent struct {
	TaskID    string             `json:"task_id"`
	WorkID    string             `json:"work_id"`
	OwnerID   string             `json:"owner_id"`
	Kind      generation.JobKind `json:"kind"`
	Status    generation.Status  `json:"status"`
	ResultRef string             `json:"result_ref,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// TaskRemovedEvent is broadcast when a task is removed from the registry.
type TaskRemovedEvent struct {
	TaskID string `json:"task_id"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// TaskStatus builds a TaskStatusEvent from a task.
func TaskStatus(t generation.Task) TaskStatusEvent {
	return TaskStatusEvent{
		TaskID:    t.ID,
		WorkID:    t.WorkID,
		OwnerID:   t.OwnerID,
		Kind:      t.Kind,
		Status:    t.Status,
		ResultRef: t.ResultRef,
		Error:     t.Error,
	}
}
