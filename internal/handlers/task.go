package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"taskbook/internal/view"
)

// taskInput is the body of create and update requests. Date and Tag are
// pointers so an update can tell "absent" from "clear".
type taskInput struct {
	Text string  `json:"text"`
	Date *string `json:"date"`
	Tag  *string `json:"tag"`
}

// decodeTaskInput reads a JSON body, or form values for any other content type.
func decodeTaskInput(r *http.Request) (taskInput, error) {
	var in taskInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&in)
		return in, err
	}

	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Text = r.PostForm.Get("text")
	if _, ok := r.PostForm["date"]; ok {
		d := r.PostForm.Get("date")
		in.Date = &d
	}
	if _, ok := r.PostForm["tag"]; ok {
		t := r.PostForm.Get("tag")
		in.Tag = &t
	}
	return in, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListTasks returns all tasks, or those matching ?tag= or ?untagged=1.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	sel := view.AllTags
	q := r.URL.Query()
	if q.Get("untagged") == "1" || q.Get("untagged") == "true" {
		sel = view.Tag("")
	} else if tag := q.Get("tag"); tag != "" {
		sel = view.Tag(tag)
	}

	respondJSON(w, http.StatusOK, h.store.ByTag(sel))
}

// CreateTask creates a new task.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTaskInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.store.Add(r.Context(), in.Text, deref(in.Date), deref(in.Tag))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask returns a single task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask edits an existing task. Omitted date or tag fields are left unchanged.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	in, err := decodeTaskInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Edit(ctx, id, in.Text, in.Date, in.Tag); err != nil {
		h.respondStoreError(w, err)
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// SetCompleted sets the completion flag from {"completed": bool}.
func (h *Handlers) SetCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var payload struct {
		Completed *bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Completed == nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.store.SetCompleted(ctx, id, *payload.Completed); err != nil {
		h.respondStoreError(w, err)
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// ToggleTask toggles the completion status of a task.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.store.Toggle(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTags returns the tag index.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Tags())
}
