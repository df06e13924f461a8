package store

import (
	"context"

	"taskbook/internal/models"
)

// Backend is the durable representation behind the task store.
type Backend interface {
	// ListTasks returns every persisted task in store order.
	ListTasks(ctx context.Context) ([]models.Task, error)

	// Lifecycle
	Close() error
}

// Snapshot is the whole persisted state of a snapshot backend.
type Snapshot struct {
	Tasks []models.Task
	// NextID is the lowest id never handed out. Zero when the document
	// predates it, in which case ids above every loaded task are safe.
	NextID models.TaskID
}

// SnapshotBackend persists the whole task collection on every write.
type SnapshotBackend interface {
	Backend
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// RowBackend persists tasks one row at a time and assigns identifiers.
type RowBackend interface {
	Backend
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id models.TaskID) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id models.TaskID) error
}
