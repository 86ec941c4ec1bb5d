package scheduler

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/aristath/requestmirror/internal/queue"
	"github.com/rs/zerolog"
)

// Entry is the schedule of one poll kind for one track.
type Entry struct {
	TrackSlug string         `json:"track_slug"`
	Kind      queue.TaskKind `json:"kind"`
	NextDue   time.Time      `json:"next_due"`
	Pending   bool           `json:"pending"` // handed to the queue, waiting for a successful run
}

// SeedTrack is what the scheduler needs to know about a track at startup.
type SeedTrack struct {
	Slug         string
	LastPolledAt time.Time
	Interval     time.Duration
}

type entryKey struct {
	slug string
	kind queue.TaskKind
}

type entry struct {
	Entry
	index int // position in the heap, -1 while pending
}

// entryHeap orders entries by due time, then slug, then kind.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.NextDue.Equal(b.NextDue) {
		return a.NextDue.Before(b.NextDue)
	}
	if a.TrackSlug != b.TrackSlug {
		return a.TrackSlug < b.TrackSlug
	}
	return a.Kind == queue.KindPollSource && b.Kind != queue.KindPollSource
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// PollScheduler decides when each track's source and mirror are polled.
//
// Source polls follow the adaptive interval reported after each poll. Mirror
// polls follow a fixed spread: tracks sorted by slug own one slot each, and
// exactly one track's mirror poll becomes due per wall-clock minute.
type PollScheduler struct {
	heap    entryHeap
	entries map[entryKey]*entry
	tracks  []string // sorted, defines mirror slots
	mu      sync.Mutex
	log     zerolog.Logger
}

// NewPollScheduler creates an empty scheduler.
func NewPollScheduler(log zerolog.Logger) *PollScheduler {
	return &PollScheduler{
		entries: make(map[entryKey]*entry),
		log:     log.With().Str("component", "poll_scheduler").Logger(),
	}
}

// Seed registers tracks at startup. Source polls of tracks never polled (or
// overdue) are spread evenly across spread; mirror polls take their slot.
func (s *PollScheduler) Seed(tracks []SeedTrack, now time.Time, spread time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]SeedTrack, len(tracks))
	copy(sorted, tracks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slug < sorted[j].Slug })

	for _, t := range sorted {
		s.addTrackLocked(t.Slug)
	}

	var step time.Duration
	if len(sorted) > 0 {
		step = spread / time.Duration(len(sorted))
	}

	for i, t := range sorted {
		sourceDue := now.Add(time.Duration(i) * step)
		if !t.LastPolledAt.IsZero() {
			if next := t.LastPolledAt.Add(t.Interval); next.After(sourceDue) {
				sourceDue = next
			}
		}
		s.setDueLocked(t.Slug, queue.KindPollSource, sourceDue)
		s.setDueLocked(t.Slug, queue.KindPollMirror, s.mirrorDueLocked(t.Slug, now))
	}

	s.log.Info().Int("tracks", len(sorted)).Dur("spread", spread).Msg("Poll schedule seeded")
}

// SelectDue returns the earliest poll due at now (ties: slug, then source before
// mirror). The entry stays out of the schedule until Reschedule or Release.
func (s *PollScheduler) SelectDue(now time.Time) (queue.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.heap) == 0 || s.heap[0].NextDue.After(now) {
		return queue.Task{}, false
	}

	e := heap.Pop(&s.heap).(*entry)
	e.Pending = true
	return queue.PollTask(e.Kind, e.TrackSlug, e.NextDue), true
}

// Release returns a selected poll to the schedule unchanged, used when the
// queue could not accept it.
func (s *PollScheduler) Release(task queue.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{task.Target.TrackSlug, task.Kind}]
	if !ok || e.index >= 0 {
		return
	}
	e.Pending = false
	heap.Push(&s.heap, e)
}

// RescheduleSource sets the next source poll after a successful poll at now.
// Tracks that were not seeded are ignored and the zero time is returned.
func (s *PollScheduler) RescheduleSource(slug string, now time.Time, interval time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryKey{slug, queue.KindPollSource}]; !ok {
		return time.Time{}
	}
	due := now.Add(interval)
	s.setDueLocked(slug, queue.KindPollSource, due)
	return due
}

// RescheduleMirror sets the next mirror poll to the track's next slot after now.
// Tracks that were not seeded are ignored and the zero time is returned.
func (s *PollScheduler) RescheduleMirror(slug string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryKey{slug, queue.KindPollMirror}]; !ok {
		return time.Time{}
	}
	due := s.mirrorDueLocked(slug, now)
	s.setDueLocked(slug, queue.KindPollMirror, due)
	return due
}

// Entries returns a copy of every schedule entry, sorted by due time.
func (s *PollScheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDue.Equal(out[j].NextDue) {
			return out[i].NextDue.Before(out[j].NextDue)
		}
		if out[i].TrackSlug != out[j].TrackSlug {
			return out[i].TrackSlug < out[j].TrackSlug
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Tracks returns the scheduled track slugs in slot order.
func (s *PollScheduler) Tracks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tracks...)
}

func (s *PollScheduler) addTrackLocked(slug string) {
	i := sort.SearchStrings(s.tracks, slug)
	if i < len(s.tracks) && s.tracks[i] == slug {
		return
	}
	s.tracks = append(s.tracks, "")
	copy(s.tracks[i+1:], s.tracks[i:])
	s.tracks[i] = slug
}

func (s *PollScheduler) setDueLocked(slug string, kind queue.TaskKind, due time.Time) {
	key := entryKey{slug, kind}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{Entry: Entry{TrackSlug: slug, Kind: kind}, index: -1}
		s.entries[key] = e
	}

	e.NextDue = due
	e.Pending = false
	if e.index >= 0 {
		heap.Fix(&s.heap, e.index)
	} else {
		heap.Push(&s.heap, e)
	}
}

func (s *PollScheduler) mirrorDueLocked(slug string, now time.Time) time.Time {
	return NextMirrorSlot(sort.SearchStrings(s.tracks, slug), len(s.tracks), now)
}

// NextMirrorSlot returns the first wall-clock minute strictly after now that
// belongs to slot index out of count slots (minute mod count == index).
func NextMirrorSlot(index, count int, now time.Time) time.Time {
	if count <= 0 {
		count = 1
	}
	minute := now.Unix()/60 + 1
	offset := (int64(index) - minute%int64(count) + int64(count)) % int64(count)
	return time.Unix((minute+offset)*60, 0).In(now.Location())
}
