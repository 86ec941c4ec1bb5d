// Package tracks persists per-track state: the mirror thread and the adaptive polling activity.
package tracks

import "time"

// Track is one category of requests and its mirror thread.
type Track struct {
	Slug          string        `json:"slug"`
	ThreadID      string        `json:"thread_id,omitempty"` // empty until the thread exists
	PollInterval  time.Duration `json:"poll_interval"`
	LastPolledAt  time.Time     `json:"last_polled_at"`
	RecentChanges []time.Time   `json:"recent_changes"` // sorted, newest last
}

// HasThread reports whether the track is mapped to a mirror thread.
func (t Track) HasThread() bool {
	return t.ThreadID != ""
}

// Polled reports whether the source was ever polled for this track.
func (t Track) Polled() bool {
	return !t.LastPolledAt.IsZero()
}
