// Package tasks owns the canonical task collection. All commands go through
// Store, which persists every mutation before acknowledging it and keeps the
// tag index current.
package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"taskbook/internal/models"
	"taskbook/internal/store"
	"taskbook/internal/view"
)

// Store is the task store. It is safe for use by multiple goroutines; all
// operations are serialized by a single mutex.
type Store struct {
	mu      sync.Mutex
	backend store.Backend
	logger  *slog.Logger

	tasks  map[models.TaskID]models.Task
	order  []models.TaskID
	tags   []string
	nextID models.TaskID

	listeners    map[int]func(Change)
	nextListener int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation and persistence messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New loads every task from backend and returns a ready store.
// backend must be a store.SnapshotBackend or a store.RowBackend.
func New(ctx context.Context, backend store.Backend, opts ...Option) (*Store, error) {
	switch backend.(type) {
	case store.SnapshotBackend, store.RowBackend:
	default:
		return nil, fmt.Errorf("unsupported backend type %T", backend)
	}

	s := &Store{
		backend:   backend,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tasks:     make(map[models.TaskID]models.Task),
		listeners: make(map[int]func(Change)),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}

	var snap store.Snapshot
	var err error
	switch b := backend.(type) {
	case store.RowBackend:
		snap.Tasks, err = b.ListTasks(ctx)
	case store.SnapshotBackend:
		snap, err = b.LoadSnapshot(ctx)
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Err: err}
	}
	s.load(snap)

	s.logger.Debug("task store loaded", "tasks", len(s.order), "tags", len(s.tags), "next_id", s.nextID)
	return s, nil
}

// load installs a snapshot read from the backend. Tasks without a usable id
// (absent, non-positive or duplicated) are given fresh ids. The counter
// never goes below the persisted high-water mark, so ids of deleted tasks
// are not handed out again.
func (s *Store) load(snap store.Snapshot) {
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
	for _, t := range snap.Tasks {
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	for _, t := range snap.Tasks {
		if _, dup := s.tasks[t.ID]; t.ID <= 0 || dup {
			t.ID = s.nextID
			s.nextID++
		}
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	s.tags = view.DistinctTags(s.snapshotLocked())
}

// Close closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// Add creates a task with completed=false and returns its id.
func (s *Store) Add(ctx context.Context, text, date, tag string) (models.TaskID, error) {
	task, err := newTask(text, date, tag)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	switch b := s.backend.(type) {
	case store.RowBackend:
		err = b.CreateTask(ctx, &task)
	case store.SnapshotBackend:
		task.ID = s.nextID
		err = b.SaveSnapshot(ctx, store.Snapshot{
			Tasks:  append(s.snapshotLocked(), task),
			NextID: task.ID + 1,
		})
	}
	if err != nil {
		s.mu.Unlock()
		return 0, s.persistFailed("add", err)
	}

	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	if task.ID >= s.nextID {
		s.nextID = task.ID + 1
	}
	change := s.committedLocked(ChangeAdded, task.ID)
	s.mu.Unlock()

	s.logger.Debug("task added", "id", task.ID, "tag", task.Tag, "date", task.Date)
	s.notify(change)
	return task.ID, nil
}

// Edit replaces the text of a task and, when non-nil, its date and tag.
// A pointer to an empty string clears the date or tag.
func (s *Store) Edit(ctx context.Context, id models.TaskID, text string, date, tag *string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &models.ValidationError{Field: "text", Reason: "is required"}
	}

	var newDate, newTag *string
	if date != nil {
		d, err := models.NormalizeDate(*date)
		if err != nil {
			return err
		}
		newDate = &d
	}
	if tag != nil {
		t := strings.TrimSpace(*tag)
		newTag = &t
	}

	return s.mutate(ctx, "edit", ChangeEdited, id, func(t *models.Task) {
		t.Text = text
		if newDate != nil {
			t.Date = *newDate
		}
		if newTag != nil {
			t.Tag = *newTag
		}
	})
}

// SetCompleted sets the completion flag. Setting the current value is a no-op success.
func (s *Store) SetCompleted(ctx context.Context, id models.TaskID, completed bool) error {
	return s.mutate(ctx, "set completed", ChangeCompleted, id, func(t *models.Task) {
		t.Completed = completed
	})
}

// Toggle flips the completion flag and returns the updated task.
func (s *Store) Toggle(ctx context.Context, id models.TaskID) (models.Task, error) {
	var updated models.Task
	err := s.mutate(ctx, "toggle", ChangeCompleted, id, func(t *models.Task) {
		t.Completed = !t.Completed
		updated = *t
	})
	return updated, err
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id models.TaskID) error {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return &models.NotFoundError{ID: id}
	}

	var err error
	switch b := s.backend.(type) {
	case store.RowBackend:
		err = b.DeleteTask(ctx, id)
	case store.SnapshotBackend:
		err = b.SaveSnapshot(ctx, s.snapshotFor(s.orderWithout(id), nil))
	}
	if err != nil && !models.IsNotFound(err) {
		s.mu.Unlock()
		return s.persistFailed("delete", err)
	}

	change := s.dropLocked(id)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("task missing from backend, dropped", "id", id)
	} else {
		s.logger.Debug("task deleted", "id", id)
	}
	s.notify(change)
	return err
}

// mutate applies fn to a copy of task id, persists the result and then
// installs it. On any error the stored task is left untouched.
func (s *Store) mutate(ctx context.Context, op string, kind ChangeKind, id models.TaskID, fn func(*models.Task)) error {
	s.mu.Lock()
	current, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return &models.NotFoundError{ID: id}
	}

	updated := current
	fn(&updated)

	var err error
	if updated != current {
		switch b := s.backend.(type) {
		case store.RowBackend:
			err = b.UpdateTask(ctx, &updated)
		case store.SnapshotBackend:
			err = b.SaveSnapshot(ctx, s.snapshotFor(s.order, &updated))
		}
	}
	if models.IsNotFound(err) {
		change := s.dropLocked(id)
		s.mu.Unlock()
		s.logger.Warn("task missing from backend, dropped", "op", op, "id", id)
		s.notify(change)
		return err
	}
	if err != nil {
		s.mu.Unlock()
		return s.persistFailed(op, err)
	}

	s.tasks[id] = updated
	change := s.committedLocked(kind, id)
	s.mu.Unlock()

	s.logger.Debug("task updated", "op", op, "id", id)
	s.notify(change)
	return nil
}

// All returns every task in insertion order.
func (s *Store) All() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns the task with the given id.
func (s *Store) Get(id models.TaskID) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, &models.NotFoundError{ID: id}
	}
	return t, nil
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Tags returns the tag index: distinct non-empty tags in first-use order.
func (s *Store) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tags...)
}

// ByTag returns the tasks selected by sel in insertion order.
func (s *Store) ByTag(sel view.TagSelector) []models.Task {
	return view.ByTag(s.All(), sel)
}

// ByDate returns the tasks due on date. date may be YYYY-MM-DD or DD.MM.YYYY.
func (s *Store) ByDate(date string) ([]models.Task, error) {
	d, err := models.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	if d == "" {
		return nil, &models.ValidationError{Field: "date", Reason: "is required"}
	}
	return view.ByDate(s.All(), d), nil
}

// Agenda returns all tasks grouped by due date.
func (s *Store) Agenda() []view.DateGroup {
	return view.GroupByDate(s.All())
}

func newTask(text, date, tag string) (models.Task, error) {
	d, err := models.NormalizeDate(date)
	if err != nil {
		return models.Task{}, err
	}
	task := models.Task{
		Text: strings.TrimSpace(text),
		Date: d,
		Tag:  strings.TrimSpace(tag),
	}
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *Store) snapshotLocked() []models.Task {
	return s.collectLocked(s.order, nil)
}

// snapshotFor builds the document a snapshot backend should hold for ids.
func (s *Store) snapshotFor(ids []models.TaskID, override *models.Task) store.Snapshot {
	return store.Snapshot{Tasks: s.collectLocked(ids, override), NextID: s.nextID}
}

// collectLocked builds the ordered task list for ids, substituting override
// for the task with the same id.
func (s *Store) collectLocked(ids []models.TaskID, override *models.Task) []models.Task {
	out := make([]models.Task, 0, len(ids)+1)
	for _, id := range ids {
		if override != nil && override.ID == id {
			out = append(out, *override)
			continue
		}
		out = append(out, s.tasks[id])
	}
	return out
}

// committedLocked recomputes the tag index and builds the change event.
func (s *Store) committedLocked(kind ChangeKind, id models.TaskID) Change {
	all := s.snapshotLocked()
	s.tags = view.DistinctTags(all)
	return Change{Kind: kind, ID: id, Tasks: all}
}

// dropLocked removes task id from memory and builds the delete event.
func (s *Store) dropLocked(id models.TaskID) Change {
	delete(s.tasks, id)
	s.order = s.orderWithout(id)
	return s.committedLocked(ChangeDeleted, id)
}

func (s *Store) orderWithout(id models.TaskID) []models.TaskID {
	next := make([]models.TaskID, 0, len(s.order))
	for _, other := range s.order {
		if other != id {
			next = append(next, other)
		}
	}
	return next
}

func (s *Store) persistFailed(op string, err error) error {
	s.logger.Error("failed to persist task change", "op", op, "error", err)
	return &models.PersistenceError{Op: op, Err: err}
}
