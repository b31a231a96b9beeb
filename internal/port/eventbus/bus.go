// Package eventbus defines the message bus port (interface).
package eventbus

import "context"

// Handler processes a message received from the bus.
type Handler func(ctx context.Context, subject string, data []byte) error

// Bus is the port interface for publishing and subscribing to lifecycle events.
type Bus interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the bus connection immediately.
	Close() error
}

// Subject constants for generation lifecycle events.
const (
	SubjectTaskLaunched  = "gen.task.launched"
	SubjectTaskSucceeded = "gen.task.succeeded"
	SubjectTaskFailed    = "gen.task.failed"
)

// TaskEvent is the payload published on gen.task.* subjects.
type TaskEvent struct {
	TaskID    string `json:"task_id"`
	WorkID    string `json:"work_id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	ResultRef string `json:"result_ref,omitempty"`
	Error     string `json:"error,omitempty"`
}
