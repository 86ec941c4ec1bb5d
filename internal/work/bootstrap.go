package work

import (
	"fmt"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/aristath/requestmirror/internal/estimator"
	"github.com/aristath/requestmirror/internal/scheduler"
)

// Bootstrap rebuilds in-memory state from the database for the given tracks,
// restores the persisted queue and seeds the poll schedule. Call before Run.
//
// Mirror state is restored from the requests table when the track already has
// a thread, so apply tasks left over from the previous run can execute before
// the first mirror poll.
func (w *Worker) Bootstrap(slugs []string) error {
	w.runLock.Lock()
	defer w.runLock.Unlock()
	defer w.publish()

	now := w.now()
	wanted := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		if err := w.tracks.Ensure(slug); err != nil {
			return domain.Persistence("ensure_track", err)
		}
		wanted[slug] = true
	}

	stored, err := w.tracks.GetAll()
	if err != nil {
		return domain.Persistence("load_tracks", err)
	}

	seeds := make([]scheduler.SeedTrack, 0, len(slugs))
	for _, track := range stored {
		if !wanted[track.Slug] {
			continue
		}

		st := w.track(track.Slug)
		st.threadID = track.ThreadID
		st.lastPolledAt = track.LastPolledAt
		st.history.Add(track.RecentChanges...)
		if track.PollInterval > 0 {
			st.pollInterval = estimator.Clamp(track.PollInterval, w.cfg.PollMin, w.cfg.PollMax)
		}

		items, err := w.requests.ListByTrack(track.Slug)
		if err != nil {
			return domain.Persistence("load_requests", err)
		}
		for _, item := range items {
			st.seen[item.RequestID] = true
			if item.Mirrored() {
				st.mirror[item.RequestID] = item.MessageID
			}
		}
		st.mirrorKnown = st.threadID != ""

		seeds = append(seeds, scheduler.SeedTrack{
			Slug:         track.Slug,
			LastPolledAt: st.lastPolledAt,
			Interval:     st.pollInterval,
		})
	}

	if err := w.queue.Load(); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	// Tasks of tracks that are no longer mirrored would otherwise run once
	// and leave the track without a schedule entry or mirror state.
	var orphaned int
	for _, task := range w.queue.Pending() {
		if wanted[task.Target.TrackSlug] {
			continue
		}
		if err := w.queue.Cancel(task); err != nil {
			return fmt.Errorf("cancel task of untracked %s: %w", task.Target.TrackSlug, err)
		}
		orphaned++
	}
	if orphaned > 0 {
		w.log.Warn().Int("tasks", orphaned).Msg("Cancelled tasks of tracks no longer mirrored")
	}

	w.scheduler.Seed(seeds, now, w.cfg.PollMin)

	w.log.Info().
		Int("tracks", len(seeds)).
		Int("pending_tasks", w.queue.Len()).
		Msg("Worker state restored")
	return nil
}
