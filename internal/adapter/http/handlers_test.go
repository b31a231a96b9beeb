package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/glintapp/glint-core/internal/adapter/ws"
	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/balance"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
	"github.com/glintapp/glint-core/internal/port/workstore"
	"github.com/glintapp/glint-core/internal/service"
)

// fakeStore is a minimal in-memory workstore.Store.
type fakeStore struct {
	mu   sync.Mutex
	byID map[string]generation.WorkRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]generation.WorkRecord)}
}

func (s *fakeStore) Create(_ context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.byID[cp.ID] = cp
	out := cp
	return &out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *fakeStore) GetByJobID(_ context.Context, jobID string) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if rec.JobID == jobID {
			out := rec
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListByOwner(_ context.Context, ownerID string, f workstore.Filters) ([]generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []generation.WorkRecord{}
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
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, rec *generation.WorkRecord) (*generation.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	s.byID[cp.ID] = cp
	out := cp
	return &out, nil
}

// fakeQueue is a jobqueue.Queue with canned responses.
type fakeQueue struct {
	status jobqueue.StatusResult
}

func (q *fakeQueue) Submit(_ context.Context, _ jobqueue.Submission) (*jobqueue.SubmitResult, error) {
	return &jobqueue.SubmitResult{JobID: "job-1"}, nil
}

func (q *fakeQueue) QueryStatus(_ context.Context, _ string, _ generation.JobKind) (*jobqueue.StatusResult, error) {
	st := q.status
	return &st, nil
}

func (q *fakeQueue) ExecuteOnce(_ context.Context, _ jobqueue.Submission) (*jobqueue.ExecuteResult, error) {
	return &jobqueue.ExecuteResult{ResultRef: "https://cdn.example.com/out.png"}, nil
}

// fakeBalance is a balance.Service with a fixed answer.
type fakeBalance struct {
	sufficient bool
	available  int64
}

func (b *fakeBalance) Check(_ context.Context, _ string, _ int64) (*balance.Check, error) {
	return &balance.Check{Sufficient: b.sufficient, Available: b.available}, nil
}

func newTestRouter(queue *fakeQueue, bal *fakeBalance) (chi.Router, *service.Engine) {
	store := newFakeStore()
	engine := service.NewEngine(store, queue, bal)
	works := service.NewWorkListService(store, nil, engine, 0)

	r := chi.NewRouter()
	MountRoutes(r, NewHandlers(engine, works), ws.NewHub())
	return r, engine
}

func launchBody() string {
	return `{
		"owner_id": "owner-1",
		"kind": "image_to_image",
		"title": "Anime style",
		"price": 50,
		"params": {
			"image_to_image": {"source_image": "selfie.jpg", "style_template": "anime"}
		}
	}`
}

func TestLaunchTaskAccepted(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{sufficient: true, available: 100})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(launchBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var tk generation.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tk); err != nil {
		t.Fatal(err)
	}
	if tk.ID != "job-1" || tk.Status != generation.StatusPending {
		t.Errorf("task = %+v", tk)
	}
}

func TestLaunchTaskInsufficientBalance(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{sufficient: false, available: 12})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(launchBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error     string `json:"error"`
		Required  int64  `json:"required"`
		Available int64  `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Required != 50 || body.Available != 12 {
		t.Errorf("body = %+v", body)
	}
}

func TestLaunchTaskValidation(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{sufficient: true})

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing owner", `{"kind":"image_to_image"}`},
		{"unknown kind", `{"owner_id":"o","kind":"mosaic"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPollTaskLifecycle(t *testing.T) {
	queue := &fakeQueue{status: jobqueue.StatusResult{Status: jobqueue.RemotePending}}
	r, _ := newTestRouter(queue, &fakeBalance{sufficient: true, available: 100})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(launchBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatal(rec.Body.String())
	}

	poll := func() generation.Task {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/job-1/poll", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d: %s", rec.Code, rec.Body.String())
		}
		var tk generation.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &tk); err != nil {
			t.Fatal(err)
		}
		return tk
	}

	if tk := poll(); tk.Status != generation.StatusPending {
		t.Errorf("status = %s, want pending", tk.Status)
	}

	queue.status = jobqueue.StatusResult{Status: jobqueue.RemoteSucceeded, ImageURL: "https://cdn.example.com/out.png"}
	if tk := poll(); tk.Status != generation.StatusSuccess || tk.ResultRef == "" {
		t.Errorf("task = %+v, want success with result", tk)
	}
}

func TestPollTaskNotFound(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/ghost/poll", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListAndRemoveTasks(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{sufficient: true, available: 100})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(launchBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []generation.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/job-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/job-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestListWorks(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{sufficient: true, available: 100})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(launchBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/works?owner_id=owner-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var works []generation.WorkRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &works); err != nil {
		t.Fatal(err)
	}
	if len(works) != 1 {
		t.Fatalf("works = %d, want 1", len(works))
	}

	// Filtered query.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/works?owner_id=owner-1&status=success", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	works = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &works); err != nil {
		t.Fatal(err)
	}
	if len(works) != 0 {
		t.Errorf("success works = %d, want 0", len(works))
	}
}

func TestListWorksValidation(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{})

	cases := []struct {
		name string
		url  string
	}{
		{"missing owner", "/api/v1/works"},
		{"bad kind", "/api/v1/works?owner_id=o&kind=mosaic"},
		{"bad status", "/api/v1/works?owner_id=o&status=done"},
		{"bad limit", "/api/v1/works?owner_id=o&limit=zero"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(&fakeQueue{}, &fakeBalance{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
