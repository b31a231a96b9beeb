package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/balance"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
	"github.com/glintapp/glint-core/internal/port/workstore"
)

// mockStore is an in-memory workstore.Store with error injection.
type mockStore struct {
	mu      sync.Mutex
	byID    map[string]generation.WorkRecord
	clock   time.Time
	creates int
	updates int

	createErr error
	getErr    error
	updateErr error
	listErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		byID:  make(map[string]generation.WorkRecord),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the store clock so successive writes get distinct timestamps.
func (s *mockStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *mockStore) Create(_ context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.creates++
	cp := *rec
	now := s.tick()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.byID[cp.ID] = cp
	out := cp
	return &out, nil
}

func (s *mockStore) GetByID(_ context.Context, id string) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *mockStore) GetByJobID(_ context.Context, jobID string) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, rec := range s.byID {
		if rec.JobID == jobID {
			out := rec
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockStore) ListByOwner(_ context.Context, ownerID string, f workstore.Filters) ([]generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []generation.WorkRecord
	for _, rec := range s.byID {
		if rec.OwnerID != ownerID {
			continue
		}
		if f.Kind != "" && rec.Meta.Kind != f.Kind {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, rec)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *mockStore) Update(_ context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	cur, ok := s.byID[rec.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(rec.UpdatedAt) {
		return nil, domain.ErrConflict
	}
	s.updates++
	cp := *rec
	cp.UpdatedAt = s.tick()
	s.byID[cp.ID] = cp
	out := cp
	return &out, nil
}

func (s *mockStore) get(id string) generation.WorkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *mockStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// mockQueue implements jobqueue.Queue with configurable responses.
type mockQueue struct {
	mu          sync.Mutex
	submitRes   *jobqueue.SubmitResult
	submitErr   error
	statusRes   *jobqueue.StatusResult
	statusErr   error
	executeRes  *jobqueue.ExecuteResult
	executeErr  error
	executeFn   func(ctx context.Context, sub jobqueue.Submission) (*jobqueue.ExecuteResult, error)
	submits     int
	queries     int
	executions  int
	lastSubKind generation.JobKind
}

func (q *mockQueue) Submit(_ context.Context, sub jobqueue.Submission) (*jobqueue.SubmitResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submits++
	q.lastSubKind = sub.Kind
	if q.submitErr != nil {
		return nil, q.submitErr
	}
	if q.submitRes != nil {
		return q.submitRes, nil
	}
	return &jobqueue.SubmitResult{JobID: "job-1"}, nil
}

func (q *mockQueue) QueryStatus(_ context.Context, _ string, _ generation.JobKind) (*jobqueue.StatusResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries++
	if q.statusErr != nil {
		return nil, q.statusErr
	}
	if q.statusRes != nil {
		return q.statusRes, nil
	}
	return &jobqueue.StatusResult{Status: jobqueue.RemotePending}, nil
}

func (q *mockQueue) ExecuteOnce(ctx context.Context, sub jobqueue.Submission) (*jobqueue.ExecuteResult, error) {
	q.mu.Lock()
	q.executions++
	fn := q.executeFn
	res, err := q.executeRes, q.executeErr
	q.mu.Unlock()
	if fn != nil {
		return fn(ctx, sub)
	}
	return res, err
}

func (q *mockQueue) setStatus(res *jobqueue.StatusResult, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statusRes = res
	q.statusErr = err
}

func (q *mockQueue) queryCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queries
}

// mockBalance implements balance.Service.
type mockBalance struct {
	mu        sync.Mutex
	res       *balance.Check
	err       error
	checks    int
	lastOwner string
}

func (b *mockBalance) Check(_ context.Context, ownerID string, _ int64) (*balance.Check, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks++
	b.lastOwner = ownerID
	if b.err != nil {
		return nil, b.err
	}
	if b.res != nil {
		return b.res, nil
	}
	return &balance.Check{Sufficient: true, Available: 1000}, nil
}

// i2iRequest builds a valid poll-model launch request.
func i2iRequest(price int64) generation.LaunchRequest {
	return generation.LaunchRequest{
		OwnerID:    "owner-1",
		Kind:       generation.KindImageToImage,
		Title:      "Anime style",
		CoverImage: "https://cdn.example.com/tpl/anime.jpg",
		Price:      price,
		Params: generation.Metadata{
			ImageToImage: &generation.ImageToImageParams{
				SourceImage:   "https://cdn.example.com/u/selfie.jpg",
				StyleTemplate: "anime-v2",
			},
		},
	}
}

// backgroundRequest builds a valid fire-and-forget launch request.
func backgroundRequest(price int64) generation.LaunchRequest {
	return generation.LaunchRequest{
		OwnerID: "owner-1",
		Kind:    generation.KindBackgroundImageToImage,
		Title:   "Remove background",
		Price:   price,
		Params: generation.Metadata{
			BackgroundI2I: &generation.BackgroundI2IParams{
				SourceImage: "https://cdn.example.com/u/photo.jpg",
				Prompt:      "studio background",
			},
		},
	}
}

func newTestEngine() (*Engine, *mockStore, *mockQueue, *mockBalance) {
	store := newMockStore()
	queue := &mockQueue{}
	bal := &mockBalance{}
	return NewEngine(store, queue, bal), store, queue, bal
}

// errTransient stands in for an infrastructure failure.
var errTransient = errors.New("transient infrastructure failure")

// listAll is the unfiltered work-list query.
var listAll = workstore.Filters{}
