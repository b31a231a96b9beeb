// Package workstore defines the persisted work-record store port (interface).
package workstore

import (
	"context"

	"github.com/glintapp/glint-core/internal/domain/generation"
)

// Filters narrows a ListByOwner query. Zero values mean "no filter".
type Filters struct {
	Kind   generation.JobKind
	Status generation.Status
	Limit  int
}

// Store is the port interface for work-record persistence.
//
// Update is guarded by the record's UpdatedAt as read: a write against a
// record that has since been rewritten returns domain.ErrConflict, so
// concurrent writers resolve last-write-wins by persisted timestamp.
type Store interface {
	Create(ctx context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error)
	GetByID(ctx context.Context, id string) (*generation.WorkRecord, error)
	GetByJobID(ctx context.Context, jobID string) (*generation.WorkRecord, error)
	ListByOwner(ctx context.Context, ownerID string, f Filters) ([]generation.WorkRecord, error)
	Update(ctx context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error)
}
