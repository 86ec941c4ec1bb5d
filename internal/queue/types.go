// Package queue holds the persisted backlog of poll and apply tasks.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind identifies one of the four fixed kinds of work.
type TaskKind string

const (
	KindPollSource  TaskKind = "poll-source"
	KindPollMirror  TaskKind = "poll-mirror"
	KindApplyAdd    TaskKind = "apply-add"
	KindApplyRemove TaskKind = "apply-remove"
)

// Kinds lists every task kind in tie-break order.
var Kinds = []TaskKind{KindPollSource, KindPollMirror, KindApplyAdd, KindApplyRemove}

// rank orders kinds when two tasks are due at the same instant for the same track.
// Adds sort before removes so a swap never leaves the mirror transiently empty.
func (k TaskKind) rank() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

// Valid reports whether k is one of the known kinds.
func (k TaskKind) Valid() bool {
	return k.rank() < len(Kinds)
}

// IsPoll reports whether k polls an external system.
func (k TaskKind) IsPoll() bool {
	return k == KindPollSource || k == KindPollMirror
}

// Target is what a task acts on. RequestID is empty for poll tasks.
type Target struct {
	TrackSlug string `json:"track_slug"`
	RequestID string `json:"request_id,omitempty"`
}

// Payload carries data an apply task needs after a restart.
type Payload struct {
	Content string `msgpack:"content,omitempty" json:"content,omitempty"`
}

// Task is one pending unit of work.
type Task struct {
	ID          string    `json:"id"`
	Kind        TaskKind  `json:"kind"`
	Target      Target    `json:"target"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Attempts    int       `json:"attempts"`
	Payload     Payload   `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key identifies a task for idempotence: same kind and target means same task.
type Key struct {
	Kind      TaskKind
	TrackSlug string
	RequestID string
}

// String returns a log-friendly form of the key.
func (k Key) String() string {
	if k.RequestID == "" {
		return fmt.Sprintf("%s:%s", k.Kind, k.TrackSlug)
	}
	return fmt.Sprintf("%s:%s:%s", k.Kind, k.TrackSlug, k.RequestID)
}

// NewTask creates a task with a fresh id.
func NewTask(kind TaskKind, target Target, scheduledAt time.Time) Task {
	return Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Target:      target,
		ScheduledAt: scheduledAt,
		CreatedAt:   scheduledAt,
	}
}

// PollTask creates a poll task for a track.
func PollTask(kind TaskKind, track string, scheduledAt time.Time) Task {
	return NewTask(kind, Target{TrackSlug: track}, scheduledAt)
}

// Key returns the task's identity.
func (t Task) Key() Key {
	return Key{Kind: t.Kind, TrackSlug: t.Target.TrackSlug, RequestID: t.Target.RequestID}
}

// Less orders tasks: earliest ScheduledAt, then track slug, then kind, then request id.
func Less(a, b Task) bool {
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.Before(b.ScheduledAt)
	}
	if a.Target.TrackSlug != b.Target.TrackSlug {
		return a.Target.TrackSlug < b.Target.TrackSlug
	}
	if a.Kind != b.Kind {
		return a.Kind.rank() < b.Kind.rank()
	}
	return a.Target.RequestID < b.Target.RequestID
}
