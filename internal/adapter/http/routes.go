package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glintapp/glint-core/internal/adapter/ws"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, hub *ws.Hub) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ws", hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", h.LaunchTask)
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks/{id}/poll", h.PollTask)
		r.Delete("/tasks/{id}", h.RemoveTask)

		r.Get("/works", h.ListWorks)
	})
}
