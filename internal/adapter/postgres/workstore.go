package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/workstore"
)

const workColumns = `id, owner_id, job_id, status, results, meta, created_at, updated_at`

// Store implements workstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	resultsJSON, metaJSON, err := marshalWork(rec)
	if err != nil {
		return nil, fmt.Errorf("create work: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO works (id, owner_id, job_id, status, results, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+workColumns,
		rec.ID, rec.OwnerID, rec.JobID, rec.Status, resultsJSON, metaJSON)

	created, err := scanWork(row)
	if err != nil {
		return nil, fmt.Errorf("create work: %w", err)
	}
	return &created, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*generation.WorkRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workColumns+` FROM works WHERE id = $1`, id)

	rec, err := scanWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get work %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get work %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) GetByJobID(ctx context.Context, jobID string) (*generation.WorkRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workColumns+` FROM works WHERE job_id = $1`, jobID)

	rec, err := scanWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get work by job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get work by job %s: %w", jobID, err)
	}
	return &rec, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, f workstore.Filters) ([]generation.WorkRecord, error) {
	query := `SELECT ` + workColumns + ` FROM works WHERE owner_id = $1`
	args := []any{ownerID}

	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(` AND meta->>'job_kind' = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var recs []generation.WorkRecord
	for rows.Next() {
		rec, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("list works: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Update writes status, results and meta guarded by the UpdatedAt the caller
// read, so concurrent writers resolve last-write-wins by persisted timestamp.
// A guard miss returns domain.ErrConflict.
func (s *Store) Update(ctx context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	resultsJSON, metaJSON, err := marshalWork(rec)
	if err != nil {
		return nil, fmt.Errorf("update work %s: %w", rec.ID, err)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE works SET status = $2, results = $3, meta = $4, updated_at = now()
		 WHERE id = $1 AND updated_at = $5
		 RETURNING `+workColumns,
		rec.ID, rec.Status, resultsJSON, metaJSON, rec.UpdatedAt)

	updated, err := scanWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update work %s: %w", rec.ID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("update work %s: %w", rec.ID, err)
	}
	return &updated, nil
}

func marshalWork(rec *generation.WorkRecord) (resultsJSON, metaJSON []byte, err error) {
	resultsJSON, err = json.Marshal(rec.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal results: %w", err)
	}
	metaJSON, err = json.Marshal(rec.Meta)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal meta: %w", err)
	}
	return resultsJSON, metaJSON, nil
}

func scanWork(row pgx.Row) (generation.WorkRecord, error) {
	var (
		rec         generation.WorkRecord
		resultsJSON []byte
		metaJSON    []byte
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.JobID, &rec.Status,
		&resultsJSON, &metaJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(resultsJSON, &rec.Results); err != nil {
		return rec, fmt.Errorf("unmarshal results: %w", err)
	}
	if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
		return rec, fmt.Errorf("unmarshal meta: %w", err)
	}
	return rec, nil
}
