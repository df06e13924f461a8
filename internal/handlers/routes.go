package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the router for the task API.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Task API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Put("/tasks/{id}", h.UpdateTask)
		r.Put("/tasks/{id}/completed", h.SetCompleted)
		r.Post("/tasks/{id}/toggle", h.ToggleTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		r.Get("/tags", h.ListTags)

		r.Get("/calendar", h.Agenda)
		r.Get("/calendar/{date}", h.Day)

		r.Get("/events", h.Events)
	})

	return r
}
