package estimator

import (
	"sort"
	"time"
)

// History is a bounded, ordered set of change timestamps (oldest first).
// When full, the oldest entries are evicted.
type History struct {
	capacity int
	values   []time.Time
}

// NewHistory creates a history holding at most capacity timestamps.
func NewHistory(capacity int, values ...time.Time) *History {
	if capacity < 1 {
		capacity = 1
	}
	h := &History{capacity: capacity}
	h.Add(values...)
	return h
}

// Add records timestamps, keeping the sequence sorted and within capacity.
func (h *History) Add(values ...time.Time) {
	if len(values) == 0 {
		return
	}
	h.values = append(h.values, values...)
	sort.Slice(h.values, func(i, j int) bool { return h.values[i].Before(h.values[j]) })
	if extra := len(h.values) - h.capacity; extra > 0 {
		h.values = append([]time.Time(nil), h.values[extra:]...)
	}
}

// Values returns a copy of the timestamps, oldest first.
func (h *History) Values() []time.Time {
	out := make([]time.Time, len(h.values))
	copy(out, h.values)
	return out
}

// Len returns the number of stored timestamps.
func (h *History) Len() int {
	return len(h.values)
}
