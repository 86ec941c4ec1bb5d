package scheduler

import (
	"testing"
	"time"

	"github.com/aristath/requestmirror/internal/queue"
	testingpkg "github.com/aristath/requestmirror/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, now time.Time, slugs ...string) *PollScheduler {
	t.Helper()
	s := NewPollScheduler(zerolog.Nop())
	tracks := make([]SeedTrack, len(slugs))
	for i, slug := range slugs {
		tracks[i] = SeedTrack{Slug: slug}
	}
	s.Seed(tracks, now, 5*time.Minute)
	return s
}

func TestNextMirrorSlot(t *testing.T) {
	// Unix minute 28488240 is 2024-03-01 12:00 UTC; 28486080 mod 3 == 0.
	now := testingpkg.FixtureTime
	require.Equal(t, int64(0), (now.Unix()/60)%3)

	assert.Equal(t, now.Add(3*time.Minute), NextMirrorSlot(0, 3, now), "slot 0 skips the current minute")
	assert.Equal(t, now.Add(1*time.Minute), NextMirrorSlot(1, 3, now))
	assert.Equal(t, now.Add(2*time.Minute), NextMirrorSlot(2, 3, now))
	assert.Equal(t, now.Add(time.Minute), NextMirrorSlot(0, 1, now.Add(30*time.Second)))
}

func TestNextMirrorSlot_OneTrackPerMinute(t *testing.T) {
	now := testingpkg.FixtureTime.Add(17 * time.Second)
	const n = 7

	seen := make(map[int64]int)
	for i := 0; i < n; i++ {
		due := NextMirrorSlot(i, n, now)
		assert.True(t, due.After(now))
		assert.Zero(t, due.Second())
		assert.Equal(t, int64(i), (due.Unix()/60)%n)
		seen[due.Unix()/60]++
	}
	assert.Len(t, seen, n)
}

func TestSeed_SpreadsInitialSourcePolls(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "rust", "go", "python", "elixir", "ruby")

	due := map[string]time.Time{}
	for _, e := range s.Entries() {
		if e.Kind == queue.KindPollSource {
			due[e.TrackSlug] = e.NextDue
		}
	}

	// Sorted: elixir, go, python, ruby, rust; one minute apart over five minutes.
	assert.Equal(t, now, due["elixir"])
	assert.Equal(t, now.Add(1*time.Minute), due["go"])
	assert.Equal(t, now.Add(4*time.Minute), due["rust"])
}

func TestSeed_RespectsRecentPoll(t *testing.T) {
	now := testingpkg.FixtureTime
	s := NewPollScheduler(zerolog.Nop())
	s.Seed([]SeedTrack{
		{Slug: "go", LastPolledAt: now.Add(-2 * time.Minute), Interval: 10 * time.Minute},
	}, now, 5*time.Minute)

	task, ok := s.SelectDue(now)
	require.False(t, ok, "nothing due: %+v", task)

	for _, e := range s.Entries() {
		switch e.Kind {
		case queue.KindPollSource:
			assert.Equal(t, now.Add(8*time.Minute), e.NextDue)
		case queue.KindPollMirror:
			assert.Equal(t, now.Add(time.Minute), e.NextDue)
		}
	}
}

func TestSelectDue_OrderAndTieBreak(t *testing.T) {
	now := testingpkg.FixtureTime
	s := NewPollScheduler(zerolog.Nop())
	s.Seed([]SeedTrack{{Slug: "rust"}, {Slug: "go"}}, now, 0)

	// Both source polls are due now; slug order decides.
	first, ok := s.SelectDue(now)
	require.True(t, ok)
	assert.Equal(t, "go", first.Target.TrackSlug)
	assert.Equal(t, queue.KindPollSource, first.Kind)
	assert.Equal(t, now, first.ScheduledAt)

	second, ok := s.SelectDue(now)
	require.True(t, ok)
	assert.Equal(t, "rust", second.Target.TrackSlug)

	_, ok = s.SelectDue(now)
	assert.False(t, ok, "mirror polls are not due before their slot")
}

func TestSelectDue_SelectedEntryStaysPendingUntilRescheduled(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "go")

	task, ok := s.SelectDue(now)
	require.True(t, ok)

	_, ok = s.SelectDue(now.Add(time.Hour))
	require.True(t, ok, "mirror poll becomes due")
	_, ok = s.SelectDue(now.Add(24 * time.Hour))
	assert.False(t, ok, "pending entries are never selected twice")

	next := s.RescheduleSource(task.Target.TrackSlug, now, 7*time.Minute)
	assert.Equal(t, now.Add(7*time.Minute), next)

	again, ok := s.SelectDue(now.Add(7 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, queue.KindPollSource, again.Kind)
}

func TestRelease_ReturnsEntryUnchanged(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "go")

	task, ok := s.SelectDue(now)
	require.True(t, ok)
	s.Release(task)

	again, ok := s.SelectDue(now)
	require.True(t, ok)
	assert.Equal(t, task.Key(), again.Key())
	assert.Equal(t, task.ScheduledAt, again.ScheduledAt)

	// A second release of the same entry is a no-op.
	s.Release(again)
	s.Release(again)
	assert.Len(t, s.Entries(), 2)
}

func TestRescheduleMirror_UsesSlot(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "c", "a", "b")

	assert.Equal(t, []string{"a", "b", "c"}, s.Tracks())
	assert.Equal(t, now.Add(3*time.Minute), s.RescheduleMirror("a", now))
	assert.Equal(t, now.Add(1*time.Minute), s.RescheduleMirror("b", now))
	assert.Equal(t, now.Add(2*time.Minute), s.RescheduleMirror("c", now))
}

func TestMirrorPolls_RoundRobinOnePerMinute(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "a", "b", "c")

	// Push every source poll out of the way.
	var mirrors []queue.Task
	for {
		task, ok := s.SelectDue(now.Add(5 * time.Minute))
		if !ok {
			break
		}
		if task.Kind == queue.KindPollSource {
			s.RescheduleSource(task.Target.TrackSlug, now, 24*time.Hour)
		} else {
			mirrors = append(mirrors, task)
		}
	}
	require.Len(t, mirrors, 3)
	for _, task := range mirrors {
		s.Release(task)
	}

	var order []string
	for minute := 1; minute <= 6; minute++ {
		clock := now.Add(time.Duration(minute) * time.Minute)
		task, ok := s.SelectDue(clock)
		require.True(t, ok, "minute %d", minute)
		require.Equal(t, queue.KindPollMirror, task.Kind)
		order = append(order, task.Target.TrackSlug)
		s.RescheduleMirror(task.Target.TrackSlug, clock)

		_, ok = s.SelectDue(clock)
		assert.False(t, ok, "at most one mirror poll per minute")
	}
	assert.Equal(t, []string{"b", "c", "a", "b", "c", "a"}, order)
}

func TestReschedule_IgnoresUnknownTrack(t *testing.T) {
	now := testingpkg.FixtureTime
	s := seeded(t, now, "go")

	assert.True(t, s.RescheduleSource("python", now, time.Hour).IsZero())
	assert.True(t, s.RescheduleMirror("python", now).IsZero())

	assert.Equal(t, []string{"go"}, s.Tracks())
	assert.Len(t, s.Entries(), 2)
}
