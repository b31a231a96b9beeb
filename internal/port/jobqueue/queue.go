// Package jobqueue defines the port for the remote AI job-execution backend.
package jobqueue

import (
	"context"

	"github.com/glintapp/glint-core/internal/domain/generation"
)

// RemoteStatus is the status vocabulary the remote queue reports. Anything the
// backend sends outside this set is mapped to RemoteUnknown by the adapter.
type RemoteStatus string

const (
	RemotePending   RemoteStatus = "pending"
	RemoteSucceeded RemoteStatus = "succeeded"
	RemoteFailed    RemoteStatus = "failed"
	RemoteCanceled  RemoteStatus = "canceled"
	RemoteUnknown   RemoteStatus = "unknown"
)

// Submission carries everything the backend needs to run a job.
type Submission struct {
	OwnerID string
	Kind    generation.JobKind
	Price   int64
	Meta    generation.Metadata
}

// SubmitResult is the acknowledgement of an accepted poll-model job.
type SubmitResult struct {
	JobID string
}

// StatusResult is one status query response. On success the backend populates
// whichever result fields apply: a single video, a single image, or a batch of
// images.
type StatusResult struct {
	Status    RemoteStatus
	VideoURL  string
	ImageURL  string
	ImageURLs []string
	Message   string // failure reason, when the backend provides one
}

// ExecuteResult is the outcome of a single-shot (fire-and-forget) execution.
type ExecuteResult struct {
	ResultRef string
}

// Queue is the port interface for the remote job queue.
//
// Submit and ExecuteOnce surface a distinguished *domain.InsufficientBalanceError
// when the backend rejects the job for lack of credits.
type Queue interface {
	// Submit enqueues a poll-model job and returns its job id.
	Submit(ctx context.Context, sub Submission) (*SubmitResult, error)

	// QueryStatus fetches the current status of a previously submitted job.
	QueryStatus(ctx context.Context, jobID string, kind generation.JobKind) (*StatusResult, error)

	// ExecuteOnce performs submission and completion as one remote call
	// (background model). There is no way to poll or cancel it.
	ExecuteOnce(ctx context.Context, sub Submission) (*ExecuteResult, error)
}
