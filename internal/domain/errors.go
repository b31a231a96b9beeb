// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (the persisted
// record changed under the writer).
var ErrConflict = errors.New("conflict: record was modified by another writer")

// InsufficientBalanceError is returned when the owner's credit balance cannot
// cover the price of a generation. Required and Available are carried so the
// client can offer a top-up path.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %d credits required, %d available", e.Required, e.Available)
}
