package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no task exists with the given id.
var ErrNotFound = errors.New("registry: task not found")

// TaskStatus tracks a task through its recording lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRecording TaskStatus = "recording"
	TaskComplete  TaskStatus = "complete"
	TaskFailed    TaskStatus = "failed"
)

// Task is one registered recording job. ID is assigned by the database
// and never reused, so bundle directories derived from it stay stable.
type Task struct {
	ID          int64
	Description string
	Status      TaskStatus
	BundleDir   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Registry is the durable task index backed by a SQLite file in the
// data directory.
type Registry struct {
	db      *sql.DB
	dataDir string
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    description TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'pending',
    bundle_dir  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);
`

// Open opens (creating if needed) the registry database under dataDir.
func Open(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := filepath.Join(dataDir, "tasks.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	// SQLite handles one writer at a time; keep the pool at one
	// connection so concurrent CLI invocations queue instead of failing.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return &Registry{db: db, dataDir: dataDir}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Create registers a new task and reserves its bundle directory path.
// The insert and the path backfill commit together, so a task is never
// visible without its bundle path. The directory itself is created by the
// recorder when the session starts.
func (r *Registry) Create(ctx context.Context, description string) (*Task, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (description, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		description, TaskPending, now, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	bundleDir := BundlePath(r.dataDir, id)
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET bundle_dir = ? WHERE id = ?`, bundleDir, id); err != nil {
		return nil, fmt.Errorf("set bundle dir: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return &Task{
		ID:          id,
		Description: description,
		Status:      TaskPending,
		BundleDir:   bundleDir,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Get returns the task with the given id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id int64) (*Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, status, bundle_dir, created_at, updated_at FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// UpdateStatus moves a task to a new lifecycle status.
func (r *Registry) UpdateStatus(ctx context.Context, id int64, status TaskStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all tasks, newest first.
func (r *Registry) List(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, status, bundle_dir, created_at, updated_at FROM tasks ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// BundlePath derives the bundle directory for a task id. Deterministic,
// so a bundle can be located from its id alone.
func BundlePath(dataDir string, id int64) string {
	return filepath.Join(dataDir, "bundles", fmt.Sprintf("task_%d", id))
}

// RunPath derives the directory for replay and compile output of a task.
// It sits outside the bundle so finalized bundles stay untouched.
func RunPath(dataDir string, id int64) string {
	return filepath.Join(dataDir, "runs", fmt.Sprintf("task_%d", id))
}

func (r *Registry) BundlePath(id int64) string {
	return BundlePath(r.dataDir, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Description, &t.Status, &t.BundleDir, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}
