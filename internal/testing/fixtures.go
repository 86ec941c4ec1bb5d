package testing

import (
	"fmt"
	"time"

	"github.com/aristath/requestmirror/internal/domain"
)

// FixtureTime is a fixed reference instant for deterministic tests.
var FixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewSourceRequest builds a source request for a track with predictable fields.
func NewSourceRequest(track, id string, updatedAt time.Time) domain.SourceRequest {
	return domain.SourceRequest{
		ID:            id,
		TrackSlug:     track,
		TrackTitle:    track,
		ExerciseTitle: "Two Fer",
		StudentHandle: "student-" + id,
		URL:           fmt.Sprintf("https://exercism.org/mentoring/requests/%s", id),
		UpdatedAt:     updatedAt,
	}
}

// Clock is a manually advanced clock.
type Clock struct {
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
