package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"taskbook/internal/models"
)

// SQLite driver names registered by the imported drivers.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// SQLiteStore implements RowBackend using SQLite. A file database is locked
// for the lifetime of the store, like the JSON snapshot.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock // nil for :memory:
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*sqliteOptions)

type sqliteOptions struct {
	driver string
}

// WithDriver selects the database/sql driver. Defaults to DriverCGO.
func WithDriver(name string) SQLiteOption {
	return func(o *sqliteOptions) {
		if name != "" {
			o.driver = name
		}
	}
}

// NewSQLiteStore creates a new SQLite store with the given database path and
// brings its schema up to date.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	o := sqliteOptions{driver: DriverCGO}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver != DriverCGO && o.driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", o.driver)
	}

	var lock *flock.Flock
	if dbPath != ":memory:" {
		lock = flock.New(dbPath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", dbPath, err)
		}
		if !locked {
			return nil, fmt.Errorf("database %s is in use by another process", dbPath)
		}
	}

	db, err := sql.Open(o.driver, dbPath)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db, lock: lock}, nil
}

// Close closes the database connection and releases the lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if uerr := unlock(s.lock); err == nil {
		err = uerr
	}
	return err
}

func unlock(lock *flock.Flock) error {
	if lock == nil {
		return nil
	}
	return lock.Unlock()
}

// CreateTask inserts a task and sets its ID from the autoincrement key.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *models.Task) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (text, date, tag, completed)
		VALUES (?, ?, ?, ?)
	`, task.Text, task.Date, task.Tag, task.Completed)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = models.TaskID(id)

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id models.TaskID) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, date, tag, completed
		FROM tasks WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// ListTasks retrieves all tasks in insertion order.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, date, tag, completed
		FROM tasks ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTask overwrites text, date, tag and completed of an existing task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *models.Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET text = ?, date = ?, tag = ?, completed = ?
		WHERE id = ?
	`, task.Text, task.Date, task.Tag, task.Completed, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return requireAffected(result, task.ID)
}

// DeleteTask deletes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id models.TaskID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return requireAffected(result, id)
}

func requireAffected(result sql.Result, id models.TaskID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one row. Columns from the original schema were nullable.
func scanTask(row rowScanner) (models.Task, error) {
	var (
		task            models.Task
		text, date, tag sql.NullString
	)

	if err := row.Scan(&task.ID, &text, &date, &tag, &task.Completed); err != nil {
		return models.Task{}, err
	}
	task.Text = text.String
	task.Date = date.String
	task.Tag = tag.String

	return task, nil
}
