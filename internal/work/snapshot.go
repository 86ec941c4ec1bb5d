package work

import (
	"time"

	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/scheduler"
)

// Snapshot is an immutable view of the worker, published after every iteration.
// Readers never take the run-lock.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Iterations  uint64            `json:"iterations"`
	QueueSize   int               `json:"queue_size"`
	LastResult  *TaskResult       `json:"last_result,omitempty"`
	Tracks      []TrackStatus     `json:"tracks"`
	Schedule    []scheduler.Entry `json:"schedule"`
}

// TaskResult describes the last executed task.
type TaskResult struct {
	Task       queue.Task    `json:"task"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// TrackStatus is the in-memory state of one track.
type TrackStatus struct {
	Slug             string        `json:"slug"`
	ThreadID         string        `json:"thread_id,omitempty"`
	SourceKnown      bool          `json:"source_known"`
	MirrorKnown      bool          `json:"mirror_known"`
	SourceRequests   int           `json:"source_requests"`
	MirroredRequests int           `json:"mirrored_requests"`
	PollInterval     time.Duration `json:"poll_interval_ns"`
	LastPolledAt     time.Time     `json:"last_polled_at"`
	RecentChanges    int           `json:"recent_changes"`
	AvgChangeGap     time.Duration `json:"avg_change_gap_ns"`
}

// Track returns the status of one track.
func (s *Snapshot) Track(slug string) (TrackStatus, bool) {
	for _, t := range s.Tracks {
		if t.Slug == slug {
			return t, true
		}
	}
	return TrackStatus{}, false
}
