package queue

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store persists pending tasks.
type Store interface {
	Insert(task Task) (bool, error)
	Delete(key Key) error
	UpdateSchedule(key Key, attempts int, scheduledAt time.Time) error
	List() ([]Task, error)
}

// Repository is the SQLite Store backed by the tasks table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new task repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a task. Returns false when a task with the same key already exists.
func (r *Repository) Insert(task Task) (bool, error) {
	payload, err := msgpack.Marshal(task.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode payload for %s: %w", task.Key(), err)
	}

	result, err := r.db.Exec(`
		INSERT INTO tasks (id, kind, track_slug, request_id, scheduled_at, attempts, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, track_slug, request_id) DO NOTHING`,
		task.ID,
		string(task.Kind),
		task.Target.TrackSlug,
		task.Target.RequestID,
		task.ScheduledAt.UnixNano(),
		task.Attempts,
		payload,
		task.CreatedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert task %s: %w", task.Key(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a task. Deleting a missing task is not an error.
func (r *Repository) Delete(key Key) error {
	_, err := r.db.Exec(
		"DELETE FROM tasks WHERE kind = ? AND track_slug = ? AND request_id = ?",
		string(key.Kind), key.TrackSlug, key.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", key, err)
	}
	return nil
}

// UpdateSchedule records a failed attempt.
func (r *Repository) UpdateSchedule(key Key, attempts int, scheduledAt time.Time) error {
	_, err := r.db.Exec(
		"UPDATE tasks SET attempts = ?, scheduled_at = ? WHERE kind = ? AND track_slug = ? AND request_id = ?",
		attempts, scheduledAt.UnixNano(), string(key.Kind), key.TrackSlug, key.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", key, err)
	}
	return nil
}

// List returns every pending task ordered by schedule.
func (r *Repository) List() ([]Task, error) {
	rows, err := r.db.Query(`
		SELECT id, kind, track_slug, request_id, scheduled_at, attempts, payload, created_at
		FROM tasks
		ORDER BY scheduled_at, track_slug, kind, request_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			task        Task
			kind        string
			scheduledAt int64
			createdAt   int64
			payload     []byte
		)
		if err := rows.Scan(&task.ID, &kind, &task.Target.TrackSlug, &task.Target.RequestID,
			&scheduledAt, &task.Attempts, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Kind = TaskKind(kind)
		task.ScheduledAt = time.Unix(0, scheduledAt)
		task.CreatedAt = time.Unix(0, createdAt)
		if len(payload) > 0 {
			if err := msgpack.Unmarshal(payload, &task.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload for %s: %w", task.Key(), err)
			}
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}
