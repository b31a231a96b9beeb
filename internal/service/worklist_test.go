package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
	"github.com/glintapp/glint-core/internal/port/workstore"
)

// mapCache is a minimal cache.Cache for tests. TTLs are ignored.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

func TestWorkListCachesUnfilteredQueries(t *testing.T) {
	e, store, _, _ := newTestEngine()
	launchPollTask(t, e)

	c := newMapCache()
	svc := NewWorkListService(store, c, e, time.Minute)

	first, err := svc.List(context.Background(), "owner-1", listAll, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("len = %d, want 1", len(first))
	}
	if c.sets != 1 {
		t.Errorf("cache sets = %d, want 1", c.sets)
	}

	// Second read is served from the cache; the store is not consulted.
	store.listErr = errTransient
	second, err := svc.List(context.Background(), "owner-1", listAll, false)
	if err != nil {
		t.Fatalf("cached read hit the store: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("len = %d, want 1", len(second))
	}
}

func TestWorkListRefreshBypassesCache(t *testing.T) {
	e, store, _, _ := newTestEngine()
	launchPollTask(t, e)

	c := newMapCache()
	svc := NewWorkListService(store, c, e, time.Minute)

	if _, err := svc.List(context.Background(), "owner-1", listAll, false); err != nil {
		t.Fatal(err)
	}

	store.listErr = errTransient
	if _, err := svc.List(context.Background(), "owner-1", listAll, true); err == nil {
		t.Error("refresh must go to the store")
	}
}

func TestWorkListFilteredQueriesSkipCache(t *testing.T) {
	e, store, _, _ := newTestEngine()
	launchPollTask(t, e)

	c := newMapCache()
	svc := NewWorkListService(store, c, e, time.Minute)

	f := workstore.Filters{Kind: generation.KindImageToImage}
	recs, err := svc.List(context.Background(), "owner-1", f, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if c.sets != 0 {
		t.Error("filtered queries must not populate the cache")
	}

	f = workstore.Filters{Status: generation.StatusSuccess}
	recs, err = svc.List(context.Background(), "owner-1", f, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("len = %d, want 0 success records", len(recs))
	}
}

func TestWorkListRequiresOwner(t *testing.T) {
	e, store, _, _ := newTestEngine()
	svc := NewWorkListService(store, nil, e, 0)
	if _, err := svc.List(context.Background(), "", listAll, false); err == nil {
		t.Error("expected error for empty owner id")
	}
}

func TestWorkListLoadFeedsReconciler(t *testing.T) {
	e, store, _, _ := newTestEngine()
	tk := launchPollTask(t, e)

	// Record goes terminal out of band.
	rec, err := store.GetByJobID(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	rec.Status = generation.StatusSuccess
	rec.SetFirstResultRef("https://cdn.example.com/out.png")
	if _, err := store.Update(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	svc := NewWorkListService(store, nil, e, 0)
	if _, err := svc.List(context.Background(), "owner-1", listAll, true); err != nil {
		t.Fatal(err)
	}

	got, _ := e.registry.Get(tk.ID)
	if got.Status != generation.StatusSuccess {
		t.Errorf("status = %s, the list load should have reconciled the task", got.Status)
	}
}

func TestWorkListTerminalWriteInvalidatesCache(t *testing.T) {
	e, store, queue, _ := newTestEngine()
	c := newMapCache()
	e.SetCache(c)
	tk := launchPollTask(t, e)

	svc := NewWorkListService(store, c, e, time.Minute)
	if _, err := svc.List(context.Background(), "owner-1", listAll, false); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(context.Background(), workListKey("owner-1")); !ok {
		t.Fatal("expected a cached list")
	}

	queue.setStatus(&jobqueue.StatusResult{Status: jobqueue.RemoteSucceeded, ImageURL: "https://cdn.example.com/out.png"}, nil)
	if _, err := e.Poll(context.Background(), tk.ID); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := c.Get(context.Background(), workListKey("owner-1")); ok {
		t.Error("terminal write must invalidate the owner's cached list")
	}
}
