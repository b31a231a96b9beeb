package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/cache"
	"github.com/glintapp/glint-core/internal/port/workstore"
)

// DefaultWorkListTTL bounds how long an owner's cached work list may serve
// reads before the store is consulted again.
const DefaultWorkListTTL = 30 * time.Second

// WorkListService serves the client-facing list of an owner's work records.
// The unfiltered list (the one the app's gallery shows) is cached; filtered
// queries always go to the store. Every load from the store feeds the
// reconciler, so any refresh — no matter who triggered it — repairs stale
// registry snapshots.
type WorkListService struct {
	store  workstore.Store
	cache  cache.Cache
	engine *Engine
	ttl    time.Duration
	group  singleflight.Group
}

// NewWorkListService creates a work-list service. The cache may be nil.
func NewWorkListService(store workstore.Store, c cache.Cache, engine *Engine, ttl time.Duration) *WorkListService {
	if ttl <= 0 {
		ttl = DefaultWorkListTTL
	}
	return &WorkListService{store: store, cache: c, engine: engine, ttl: ttl}
}

// List returns the owner's work records. With refresh set, the cache is
// bypassed and the store is read; concurrent refreshes for the same owner are
// collapsed into one store round trip.
func (s *WorkListService) List(ctx context.Context, ownerID string, f workstore.Filters, refresh bool) ([]generation.WorkRecord, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("list works: owner id is required")
	}

	if f != (workstore.Filters{}) {
		recs, err := s.store.ListByOwner(ctx, ownerID, f)
		if err != nil {
			return nil, fmt.Errorf("list works: %w", err)
		}
		s.engine.OnWorkListRefreshed(ctx, recs)
		return recs, nil
	}

	if !refresh && s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, workListKey(ownerID)); err == nil && ok {
			var recs []generation.WorkRecord
			if err := json.Unmarshal(data, &recs); err == nil {
				return recs, nil
			}
			slog.Warn("corrupt work-list cache entry dropped", "owner_id", ownerID)
			_ = s.cache.Delete(ctx, workListKey(ownerID))
		}
	}

	v, err, _ := s.group.Do(ownerID, func() (any, error) {
		recs, err := s.store.ListByOwner(ctx, ownerID, workstore.Filters{})
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if data, merr := json.Marshal(recs); merr == nil {
				_ = s.cache.Set(ctx, workListKey(ownerID), data, s.ttl)
			}
		}
		s.engine.OnWorkListRefreshed(ctx, recs)
		return recs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	return v.([]generation.WorkRecord), nil
}

func workListKey(ownerID string) string {
	return "works:" + ownerID
}
