package queue

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/rs/zerolog"
)

// Queue is the ordered, persisted backlog of pending tasks.
// Every change is written to the store before it becomes visible in memory,
// and a task only leaves through Remove (success) or Cancel.
type Queue struct {
	store Store
	tasks map[Key]*Task
	mu    sync.RWMutex
	log   zerolog.Logger
}

// New creates an empty queue on top of store. Call Load to restore persisted tasks.
func New(store Store, log zerolog.Logger) *Queue {
	return &Queue{
		store: store,
		tasks: make(map[Key]*Task),
		log:   log.With().Str("component", "task_queue").Logger(),
	}
}

// Load replaces the in-memory view with the persisted tasks.
func (q *Queue) Load() error {
	tasks, err := q.store.List()
	if err != nil {
		return domain.Persistence("load_tasks", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = make(map[Key]*Task, len(tasks))
	for i := range tasks {
		task := tasks[i]
		if !task.Kind.Valid() {
			q.log.Warn().Str("task", task.Key().String()).Msg("Ignoring persisted task of unknown kind")
			continue
		}
		q.tasks[task.Key()] = &task
	}

	q.log.Info().Int("tasks", len(q.tasks)).Msg("Task queue loaded")
	return nil
}

// Enqueue adds a task. Enqueuing a task whose kind and target match a pending
// task is a no-op and returns false.
func (q *Queue) Enqueue(task Task) (bool, error) {
	if !task.Kind.Valid() {
		return false, fmt.Errorf("unknown task kind %q", task.Kind)
	}
	key := task.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[key]; exists {
		return false, nil
	}

	inserted, err := q.store.Insert(task)
	if err != nil {
		return false, domain.Persistence("enqueue", err)
	}
	if !inserted {
		// Persisted by an earlier run but not loaded into memory yet
		q.log.Warn().Str("task", key.String()).Msg("Task already persisted, skipping")
		return false, nil
	}

	q.tasks[key] = &task
	q.log.Debug().
		Str("task", key.String()).
		Time("scheduled_at", task.ScheduledAt).
		Msg("Task enqueued")
	return true, nil
}

// PeekDue returns the earliest task with ScheduledAt <= now without removing it.
func (q *Queue) PeekDue(now time.Time) (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var best *Task
	for _, task := range q.tasks {
		if task.ScheduledAt.After(now) {
			continue
		}
		if best == nil || Less(*task, *best) {
			best = task
		}
	}

	if best == nil {
		return Task{}, false
	}
	return *best, true
}

// Remove deletes a task after it executed successfully.
func (q *Queue) Remove(task Task) error {
	return q.delete(task.Key(), "removed")
}

// Cancel deletes a task that is no longer wanted.
func (q *Queue) Cancel(task Task) error {
	return q.delete(task.Key(), "cancelled")
}

func (q *Queue) delete(key Key, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[key]; !exists {
		return nil
	}

	if err := q.store.Delete(key); err != nil {
		return domain.Persistence("delete_task", err)
	}

	delete(q.tasks, key)
	q.log.Debug().Str("task", key.String()).Msg("Task " + reason)
	return nil
}

// MarkFailed records a failed attempt. Only Attempts and ScheduledAt change:
// kind, target and payload are left untouched. ScheduledAt moves forward to
// now, so the task stays due but sorts after work that became due earlier
// instead of starving it.
func (q *Queue) MarkFailed(task Task, now time.Time) (Task, error) {
	key := task.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	current, exists := q.tasks[key]
	if !exists {
		return task, nil
	}

	attempts := current.Attempts + 1
	scheduledAt := current.ScheduledAt
	if now.After(scheduledAt) {
		scheduledAt = now
	}

	if err := q.store.UpdateSchedule(key, attempts, scheduledAt); err != nil {
		return *current, domain.Persistence("mark_failed", err)
	}

	current.Attempts = attempts
	current.ScheduledAt = scheduledAt
	return *current, nil
}

// Get returns the pending task with the given key.
func (q *Queue) Get(key Key) (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[key]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Pending returns every pending task in execution order.
func (q *Queue) Pending() []Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// PendingApply returns the pending apply tasks for one track.
func (q *Queue) PendingApply(track string) []Task {
	var out []Task
	for _, task := range q.Pending() {
		if task.Target.TrackSlug == track && !task.Kind.IsPoll() {
			out = append(out, task)
		}
	}
	return out
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}
