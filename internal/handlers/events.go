package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"taskbook/internal/tasks"
)

// eventBuffer is how many changes a slow client may lag behind before
// further changes are dropped for it.
const eventBuffer = 16

// Events streams store changes as server-sent events. The first event is a
// "snapshot" of the current task list; each later "change" event carries the
// full list, so a client that missed one recovers on the next.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	logger := h.logger.With("client", uuid.NewString())

	changes := make(chan tasks.Change, eventBuffer)
	cancel := h.store.Subscribe(func(c tasks.Change) {
		select {
		case changes <- c:
		default:
			logger.Warn("dropping change event for slow client", "kind", c.Kind, "id", c.ID)
		}
	})
	defer cancel()

	logger.Debug("event stream opened", "remote", r.RemoteAddr)
	defer logger.Debug("event stream closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", h.store.All()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case c := <-changes:
			if err := writeEvent(w, "change", c); err != nil {
				logger.Debug("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
