package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"taskbook/internal/models"
	"taskbook/internal/store"
	"taskbook/internal/tasks"
	"taskbook/internal/view"
)

func setupTestHandlers(t *testing.T) (*Handlers, *tasks.Store) {
	t.Helper()
	backend, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}
	s, err := tasks.New(context.Background(), backend)
	if err != nil {
		t.Fatalf("failed to create task store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h := New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, s
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) models.Task {
	t.Helper()
	var task models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to decode task from %q: %v", rec.Body.String(), err)
	}
	return task
}

func TestCreateTaskHandler_JSON(t *testing.T) {
	h, s := setupTestHandlers(t)

	body := jsonBody(t, map[string]string{"text": "Buy milk", "date": "2024-05-01", "tag": "Shopping"})
	req := httptest.NewRequest("POST", "/api/tasks", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTask(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	task := decodeTask(t, rec)
	if task.ID == 0 || task.Text != "Buy milk" || task.Completed {
		t.Errorf("unexpected task: %+v", task)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 stored task, got %d", s.Len())
	}
}

func TestCreateTaskHandler_Form(t *testing.T) {
	h, _ := setupTestHandlers(t)

	form := url.Values{}
	form.Set("text", "Exam")
	form.Set("date", "01.05.2024")
	form.Set("tag", "Учеба")

	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.CreateTask(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	task := decodeTask(t, rec)
	if task.Date != "2024-05-01" {
		t.Errorf("expected normalized date, got %q", task.Date)
	}
}

func TestCreateTaskHandler_ValidationError(t *testing.T) {
	h, s := setupTestHandlers(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "empty text", body: map[string]string{"text": ""}},
		{name: "blank text", body: map[string]string{"text": "   "}},
		{name: "bad date", body: map[string]string{"text": "Exam", "date": "next week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/tasks", jsonBody(t, tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.CreateTask(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}

	if s.Len() != 0 {
		t.Errorf("expected store to be unchanged, got %d tasks", s.Len())
	}
}

func TestCreateTaskHandler_InvalidJSON(t *testing.T) {
	h, _ := setupTestHandlers(t)

	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateTask(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestGetTaskHandler(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Buy milk", "", "")

	rec := httptest.NewRecorder()
	h.GetTask(rec, withID(httptest.NewRequest("GET", "/api/tasks/"+id.String(), nil), id.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if task := decodeTask(t, rec); task.ID != id {
		t.Errorf("expected id %d, got %d", id, task.ID)
	}
}

func TestGetTaskHandler_Errors(t *testing.T) {
	h, _ := setupTestHandlers(t)

	tests := []struct {
		name string
		id   string
		code int
	}{
		{name: "missing task", id: "999", code: http.StatusNotFound},
		{name: "malformed id", id: "abc", code: http.StatusBadRequest},
		{name: "zero id", id: "0", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetTask(rec, withID(httptest.NewRequest("GET", "/api/tasks/"+tt.id, nil), tt.id))
			if rec.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, rec.Code)
			}
		})
	}
}

func TestUpdateTaskHandler_PartialUpdate(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	id, _ := s.Add(ctx, "Report", "2024-05-01", "Work")

	req := httptest.NewRequest("PUT", "/api/tasks/"+id.String(), jsonBody(t, map[string]string{"text": "Final report"}))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.UpdateTask(rec, withID(req, id.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	got, _ := s.Get(id)
	if got.Text != "Final report" {
		t.Errorf("expected text to change, got %q", got.Text)
	}
	if got.Date != "2024-05-01" || got.Tag != "Work" {
		t.Errorf("expected date and tag to be kept, got %+v", got)
	}
}

func TestUpdateTaskHandler_FormClearsTag(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Report", "2024-05-01", "Work")

	form := url.Values{}
	form.Set("text", "Report")
	form.Set("tag", "")

	req := httptest.NewRequest("PUT", "/api/tasks/"+id.String(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.UpdateTask(rec, withID(req, id.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	got, _ := s.Get(id)
	if got.Tag != "" {
		t.Errorf("expected tag to be cleared, got %q", got.Tag)
	}
	if got.Date != "2024-05-01" {
		t.Errorf("expected date to be kept, got %q", got.Date)
	}
}

func TestUpdateTaskHandler_Errors(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Report", "", "")

	tests := []struct {
		name string
		id   string
		text string
		code int
	}{
		{name: "empty text", id: id.String(), text: "", code: http.StatusBadRequest},
		{name: "missing task", id: "999", text: "Anything", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/api/tasks/"+tt.id, jsonBody(t, map[string]string{"text": tt.text}))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.UpdateTask(rec, withID(req, tt.id))

			if rec.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, rec.Code)
			}
		})
	}

	got, _ := s.Get(id)
	if got.Text != "Report" {
		t.Errorf("expected task to be unchanged, got %q", got.Text)
	}
}

func TestSetCompletedHandler(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Gym", "", "")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("PUT", "/api/tasks/"+id.String()+"/completed", strings.NewReader(`{"completed": true}`))
		rec := httptest.NewRecorder()

		h.SetCompleted(rec, withID(req, id.String()))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if !decodeTask(t, rec).Completed {
			t.Error("expected task to be completed")
		}
	}

	req := httptest.NewRequest("PUT", "/api/tasks/"+id.String()+"/completed", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.SetCompleted(rec, withID(req, id.String()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for missing field, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestToggleTaskHandler(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Gym", "", "")

	rec := httptest.NewRecorder()
	h.ToggleTask(rec, withID(httptest.NewRequest("POST", "/api/tasks/"+id.String()+"/toggle", nil), id.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	got, _ := s.Get(id)
	if !got.Completed {
		t.Error("expected task to be completed")
	}
}

func TestDeleteTaskHandler(t *testing.T) {
	h, s := setupTestHandlers(t)
	id, _ := s.Add(context.Background(), "Gym", "", "")

	rec := httptest.NewRecorder()
	h.DeleteTask(rec, withID(httptest.NewRequest("DELETE", "/api/tasks/"+id.String(), nil), id.String()))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if s.Len() != 0 {
		t.Errorf("expected task to be deleted")
	}

	rec = httptest.NewRecorder()
	h.DeleteTask(rec, withID(httptest.NewRequest("DELETE", "/api/tasks/"+id.String(), nil), id.String()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d on second delete, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRoutes_ListByTagAndTags(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	s.Add(ctx, "Report", "", "Work")
	s.Add(ctx, "Milk", "", "")
	s.Add(ctx, "Slides", "", "Work")

	router := h.Routes()

	tests := []struct {
		path string
		want []string
	}{
		{path: "/api/tasks", want: []string{"Report", "Milk", "Slides"}},
		{path: "/api/tasks?tag=Work", want: []string{"Report", "Slides"}},
		{path: "/api/tasks?untagged=1", want: []string{"Milk"}},
		{path: "/api/tasks?tag=Home", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}

			var got []models.Task
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d tasks, got %d", len(tt.want), len(got))
			}
			for i, text := range tt.want {
				if got[i].Text != text {
					t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
				}
			}
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tags", nil))
	var tags []string
	if err := json.Unmarshal(rec.Body.Bytes(), &tags); err != nil {
		t.Fatalf("failed to decode tags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "Work" {
		t.Errorf("expected [Work], got %v", tags)
	}
}

func TestRoutes_CalendarDay(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	s.Add(ctx, "Exam", "2024-05-01", "Учеба")
	s.Add(ctx, "Gym", "2024-05-02", "")

	router := h.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calendar/2024-05-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var day DayData
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if day.Date != "2024-05-01" || len(day.Tasks) != 1 || day.Tasks[0].Text != "Exam" {
		t.Errorf("unexpected day: %+v", day)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calendar/2024-06-01", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(day.Tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(day.Tasks))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calendar/someday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAgendaHandler_Tabs(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	done, _ := s.Add(ctx, "Done", "2024-05-01", "")
	s.Add(ctx, "Open", "2024-05-02", "Work")
	s.Add(ctx, "Someday", "", "")
	s.SetCompleted(ctx, done, true)

	tests := []struct {
		tab       string
		wantTab   string
		wantDates []string
	}{
		{tab: "", wantTab: "all", wantDates: []string{"2024-05-01", "2024-05-02", ""}},
		{tab: "active", wantTab: "active", wantDates: []string{"2024-05-02", ""}},
		{tab: "completed", wantTab: "completed", wantDates: []string{"2024-05-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.wantTab, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Agenda(rec, httptest.NewRequest("GET", "/api/calendar?tab="+tt.tab, nil))

			var data AgendaData
			if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if data.Tab != tt.wantTab {
				t.Errorf("expected tab %q, got %q", tt.wantTab, data.Tab)
			}
			if len(data.Groups) != len(tt.wantDates) {
				t.Fatalf("expected %d groups, got %d", len(tt.wantDates), len(data.Groups))
			}
			for i, date := range tt.wantDates {
				if data.Groups[i].Date != date {
					t.Errorf("group %d: expected %q, got %q", i, date, data.Groups[i].Date)
				}
			}
		})
	}
}

func TestAgendaHandler_ListsOverdueTasks(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	h.now = func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) }

	late, _ := s.Add(ctx, "Late", "2024-05-01", "")
	done, _ := s.Add(ctx, "Done late", "2024-04-01", "")
	s.Add(ctx, "Today", "2024-05-02", "")
	s.Add(ctx, "Someday", "", "")
	s.SetCompleted(ctx, done, true)

	rec := httptest.NewRecorder()
	h.Agenda(rec, httptest.NewRequest("GET", "/api/calendar", nil))

	var data AgendaData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(data.Overdue) != 1 || data.Overdue[0] != late {
		t.Errorf("expected only task %d overdue, got %v", late, data.Overdue)
	}

	rec = httptest.NewRecorder()
	h.Agenda(rec, httptest.NewRequest("GET", "/api/calendar?tab=completed", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(data.Overdue) != 0 {
		t.Errorf("expected no overdue tasks among completed ones, got %v", data.Overdue)
	}
}

func TestRoutes_Healthz(t *testing.T) {
	h, _ := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

// readEvent reads one server-sent event and returns its name and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return name, data
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsHandler_StreamsChanges(t *testing.T) {
	h, s := setupTestHandlers(t)
	ctx := context.Background()
	s.Add(ctx, "Existing", "", "")

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(reqCtx, "GET", srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open event stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	name, data := readEvent(t, reader)
	if name != "snapshot" {
		t.Fatalf("expected snapshot event, got %q", name)
	}
	var initial []models.Task
	if err := json.Unmarshal([]byte(data), &initial); err != nil || len(initial) != 1 {
		t.Fatalf("unexpected snapshot %q: %v", data, err)
	}

	id, err := s.Add(ctx, "Buy milk", "", "Shopping")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	name, data = readEvent(t, reader)
	if name != "change" {
		t.Fatalf("expected change event, got %q", name)
	}
	var change tasks.Change
	if err := json.Unmarshal([]byte(data), &change); err != nil {
		t.Fatalf("failed to decode change: %v", err)
	}
	if change.Kind != tasks.ChangeAdded || change.ID != id || len(change.Tasks) != 2 {
		t.Errorf("unexpected change: %+v", change)
	}
	if got := view.DistinctTags(change.Tasks); len(got) != 1 || got[0] != "Shopping" {
		t.Errorf("expected change to carry the new tag, got %v", got)
	}
}
