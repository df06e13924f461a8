package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskbook/internal/models"
	"taskbook/internal/view"
)

// AgendaData is the calendar overview response.
type AgendaData struct {
	Tab     string           `json:"tab"` // "all", "active" or "completed"
	Tags    []string         `json:"tags"`
	Groups  []view.DateGroup `json:"groups"`
	Overdue []models.TaskID  `json:"overdue"` // open tasks due before today
}

// DayData lists the tasks due on one calendar day.
type DayData struct {
	Date  string        `json:"date"`
	Tasks []models.Task `json:"tasks"`
}

// Agenda returns tasks grouped by due date, filtered by ?tab=.
func (h *Handlers) Agenda(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab != "active" && tab != "completed" {
		tab = "all"
	}

	now := h.now()
	all := h.store.All()
	shown := make([]models.Task, 0, len(all))
	overdue := []models.TaskID{}
	for _, t := range all {
		switch {
		case tab == "active" && t.Completed:
		case tab == "completed" && !t.Completed:
		default:
			shown = append(shown, t)
			if t.IsOverdue(now) {
				overdue = append(overdue, t.ID)
			}
		}
	}

	respondJSON(w, http.StatusOK, AgendaData{
		Tab:     tab,
		Tags:    h.store.Tags(),
		Groups:  view.GroupByDate(shown),
		Overdue: overdue,
	})
}

// Day returns the tasks due on the date in the URL.
func (h *Handlers) Day(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ByDate(chi.URLParam(r, "date"))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	date, _ := models.NormalizeDate(chi.URLParam(r, "date"))
	respondJSON(w, http.StatusOK, DayData{Date: date, Tasks: tasks})
}
