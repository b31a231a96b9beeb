package http

import (
	"net/http"
	"strconv"

	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/workstore"
	"github.com/glintapp/glint-core/internal/service"
)

// Handlers bundles the HTTP handlers with their dependencies.
type Handlers struct {
	engine *service.Engine
	works  *service.WorkListService
}

// NewHandlers creates the handler set.
func NewHandlers(engine *service.Engine, works *service.WorkListService) *Handlers {
	return &Handlers{engine: engine, works: works}
}

// LaunchTask handles POST /api/v1/tasks.
// Responds 202 with the launched task, or 402 when the owner's balance
// cannot cover the price.
func (h *Handlers) LaunchTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[generation.LaunchRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.OwnerID, "owner_id") {
		return
	}
	if !req.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown job kind")
		return
	}

	t, err := h.engine.Launch(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}

// PollTask handles POST /api/v1/tasks/{id}/poll.
// Queries the backend once for the task's remote status and returns the
// task as observed after the poll.
func (h *Handlers) PollTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	t, err := h.engine.Poll(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListTasks handles GET /api/v1/tasks.
func (h *Handlers) ListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Tasks())
}

// RemoveTask handles DELETE /api/v1/tasks/{id}.
func (h *Handlers) RemoveTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if err := h.engine.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWorks handles GET /api/v1/works.
// Query parameters: owner_id (required), kind, status, limit, refresh.
func (h *Handlers) ListWorks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ownerID := q.Get("owner_id")
	if !requireField(w, ownerID, "owner_id") {
		return
	}

	var f workstore.Filters
	if kind := q.Get("kind"); kind != "" {
		jk := generation.JobKind(kind)
		if !jk.Valid() {
			writeError(w, http.StatusBadRequest, "unknown job kind")
			return
		}
		f.Kind = jk
	}
	if status := q.Get("status"); status != "" {
		st := generation.Status(status)
		if st != generation.StatusPending && !st.Terminal() {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		f.Status = st
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	recs, err := h.works.List(r.Context(), ownerID, f, refresh)
	if err != nil {
		writeDomainError(w, err, "works not found")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
