// Package balance defines the credit-balance collaborator port.
package balance

import "context"

// Check is the result of a balance precondition query.
type Check struct {
	Sufficient bool  `json:"sufficient"`
	Available  int64 `json:"available"`
}

// Service is the port interface for the external balance collaborator.
type Service interface {
	Check(ctx context.Context, ownerID string, amount int64) (*Check, error)
}
