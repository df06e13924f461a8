package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"taskbook/internal/models"
)

// snapshotTask is one element of the snapshot's task list.
// Files written before ids were persisted have no "id" key; those tasks load with ID 0.
type snapshotTask struct {
	ID        models.TaskID `json:"id,omitempty"`
	Text      string        `json:"text"`
	Date      string        `json:"date"`
	Tag       string        `json:"tag"`
	Completed bool          `json:"completed"`
}

// snapshotDocument is the file layout. Older files hold a bare array of
// tasks with no next_id; both forms are read.
type snapshotDocument struct {
	NextID models.TaskID  `json:"next_id"`
	Tasks  []snapshotTask `json:"tasks"`
}

// JSONStore implements SnapshotBackend with a single JSON document on disk.
// The whole collection is rewritten atomically on every save, and the file is
// locked for the lifetime of the store.
type JSONStore struct {
	path string
	lock *flock.Flock
}

// NewJSONStore opens the snapshot file at path, creating its directory if needed.
// A missing file is an empty store.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("snapshot file %s is in use by another process", path)
	}

	return &JSONStore{path: path, lock: lock}, nil
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	return s.lock.Unlock()
}

// ListTasks reads the snapshot document in file order.
func (s *JSONStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tasks, nil
}

// LoadSnapshot reads the tasks and the id high-water mark.
func (s *JSONStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{Tasks: []models.Task{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Snapshot{Tasks: []models.Task{}}, nil
	}

	var doc snapshotDocument
	if data[0] == '[' {
		err = json.Unmarshal(data, &doc.Tasks)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot %s: %w", s.path, err)
	}

	tasks := make([]models.Task, 0, len(doc.Tasks))
	for _, r := range doc.Tasks {
		tasks = append(tasks, models.Task{
			ID:        r.ID,
			Text:      r.Text,
			Date:      r.Date,
			Tag:       r.Tag,
			Completed: r.Completed,
		})
	}

	return Snapshot{Tasks: tasks, NextID: doc.NextID}, nil
}

// SaveSnapshot replaces the snapshot document.
func (s *JSONStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := snapshotDocument{
		NextID: snap.NextID,
		Tasks:  make([]snapshotTask, 0, len(snap.Tasks)),
	}
	for _, t := range snap.Tasks {
		doc.Tasks = append(doc.Tasks, snapshotTask{
			ID:        t.ID,
			Text:      t.Text,
			Date:      t.Date,
			Tag:       t.Tag,
			Completed: t.Completed,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// writeFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path, so readers see either the old or the new document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
