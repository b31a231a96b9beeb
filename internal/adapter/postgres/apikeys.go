package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glintapp/glint-core/internal/domain"
)

// APIKey is one issued client credential. The secret itself is never stored,
// only its bcrypt hash.
type APIKey struct {
	ID        string
	Name      string
	KeyHash   string
	CreatedAt time.Time
}

// CreateAPIKey stores a new API key hash under the given id.
func (s *Store) CreateAPIKey(ctx context.Context, id, name, keyHash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash) VALUES ($1, $2, $3)`,
		id, name, keyHash)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKey looks an API key up by id.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, key_hash, created_at FROM api_keys WHERE id = $1`, id)

	var k APIKey
	if err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get api key %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	return &k, nil
}
