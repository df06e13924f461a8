package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskbook/internal/models"
	"taskbook/internal/tasks"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	store  *tasks.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Handlers instance.
func New(s *tasks.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// parseID extracts and parses a task ID from URL parameters.
func parseID(r *http.Request, param string) (models.TaskID, error) {
	return models.ParseTaskID(chi.URLParam(r, param))
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func (h *Handlers) respondServerError(w http.ResponseWriter, err error) {
	h.logger.Error("internal server error", "error", err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// respondStoreError maps task store errors onto status codes.
func (h *Handlers) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case models.IsNotFound(err):
		respondError(w, http.StatusNotFound, "task not found")
	default:
		h.respondServerError(w, err)
	}
}
