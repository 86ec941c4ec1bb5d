package work

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/aristath/requestmirror/internal/estimator"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/aristath/requestmirror/internal/modules/requests"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/reconcile"
)

// pollSource fetches a track's requests, updates the adaptive interval and
// reconciles.
func (w *Worker) pollSource(ctx context.Context, task queue.Task) error {
	slug := task.Target.TrackSlug
	st := w.track(slug)

	w.metrics.SourceRPC.Inc()
	reqs, err := w.source.ListRequests(ctx, slug)
	if err != nil {
		return fmt.Errorf("poll source %s: %w", slug, err)
	}

	now := w.now()
	items := make(map[string]reconcile.SourceItem, len(reqs))
	var changes []time.Time
	for _, req := range reqs {
		if _, dup := items[req.ID]; dup {
			continue
		}
		items[req.ID] = reconcile.SourceItem{RequestID: req.ID, Content: requests.FormatMessage(req)}
		if st.seen[req.ID] {
			continue
		}
		changedAt := req.UpdatedAt
		if changedAt.IsZero() {
			changedAt = now
		}
		changes = append(changes, changedAt)
	}

	history := estimator.NewHistory(w.cfg.HistorySize, st.history.Values()...)
	history.Add(changes...)
	interval := estimator.Estimate(history.Values(), w.cfg.PollMin, w.cfg.PollMax)

	// Persist first; memory only moves once the database agrees.
	if err := w.tracks.SaveActivity(slug, interval, now, history.Values()); err != nil {
		return domain.Persistence("save_activity", err)
	}
	keep := make(map[string]bool, len(items))
	for id := range items {
		keep[id] = true
	}
	if _, err := w.requests.PruneUnmirrored(slug, keep); err != nil {
		return domain.Persistence("prune_requests", err)
	}

	st.source = items
	st.sourceKnown = true
	st.seen = keep
	st.history = history
	st.pollInterval = interval
	st.lastPolledAt = now

	if len(changes) > 0 {
		w.metrics.RequestsSeen.WithLabelValues(slug).Add(float64(len(changes)))
	}
	w.metrics.PollInterval.WithLabelValues(slug).Set(interval.Seconds())
	if gap := estimator.MeanGap(history.Values()); gap > 0 {
		w.metrics.AvgRequestInterval.WithLabelValues(slug).Set(gap.Seconds())
	}

	if err := w.reconcile(st, now); err != nil {
		return err
	}

	next := w.scheduler.RescheduleSource(slug, now, interval)
	w.log.Debug().
		Str("track", slug).
		Int("requests", len(items)).
		Int("new", len(changes)).
		Dur("interval", interval).
		Time("next_poll", next).
		Msg("Source polled")

	if w.bus != nil {
		w.bus.Emit("worker", &events.TrackPolledData{
			TrackSlug:    slug,
			Requests:     len(items),
			NewRequests:  len(changes),
			PollInterval: interval,
			NextPoll:     next,
		})
	}
	return nil
}

// pollMirror refreshes a track's thread and the messages in it, then reconciles.
func (w *Worker) pollMirror(ctx context.Context, task queue.Task) error {
	slug := task.Target.TrackSlug
	st := w.track(slug)

	w.metrics.ObserveMirrorCall(false)
	threadID, err := w.mirror.GetOrCreateThread(ctx, slug)
	if err != nil {
		return fmt.Errorf("get thread for %s: %w", slug, err)
	}
	if threadID == "" {
		return domain.Inconsistent("get_thread", "mirror returned no thread for %s", slug)
	}

	w.metrics.ObserveMirrorCall(false)
	messages, err := w.mirror.ListMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("list messages for %s: %w", slug, err)
	}

	found := make(map[string]string, len(messages))
	for _, msg := range messages {
		if msg.RequestID == "" {
			continue
		}
		// The first message wins. Later duplicates are not tracked, so they stay
		// in the thread until removed by hand.
		if _, dup := found[msg.RequestID]; !dup {
			found[msg.RequestID] = msg.MessageID
		}
	}

	if threadID != st.threadID {
		if err := w.tracks.SetThread(slug, threadID); err != nil {
			return domain.Persistence("set_thread", err)
		}
	}
	if err := w.requests.SyncMessages(slug, found); err != nil {
		return domain.Persistence("sync_messages", err)
	}

	st.threadID = threadID
	st.mirror = found
	st.mirrorKnown = true
	for id := range found {
		st.seen[id] = true
	}

	now := w.now()
	if err := w.reconcile(st, now); err != nil {
		return err
	}

	next := w.scheduler.RescheduleMirror(slug, now)
	w.log.Debug().
		Str("track", slug).
		Str("thread", threadID).
		Int("messages", len(found)).
		Time("next_poll", next).
		Msg("Mirror polled")
	return nil
}

// applyAdd posts the message of one request.
func (w *Worker) applyAdd(ctx context.Context, task queue.Task) error {
	slug, requestID := task.Target.TrackSlug, task.Target.RequestID
	st := w.track(slug)

	if st.threadID == "" {
		return domain.Inconsistent("apply_add", "track %s has no thread", slug)
	}
	if messageID, ok := st.mirror[requestID]; ok && messageID != "" {
		w.log.Debug().Str("request", requestID).Msg("Request already mirrored")
		return nil
	}

	content := task.Payload.Content
	if item, ok := st.source[requestID]; ok && content == "" {
		content = item.Content
	}
	if st.sourceKnown {
		if _, ok := st.source[requestID]; !ok {
			w.log.Debug().Str("request", requestID).Msg("Request left the source, skipping add")
			return nil
		}
	}
	if content == "" {
		w.log.Warn().Str("request", requestID).Msg("Unknown request, nothing to add")
		return nil
	}

	w.metrics.ObserveMirrorCall(true)
	messageID, err := w.mirror.SendMessage(ctx, st.threadID, content)
	if err != nil {
		return fmt.Errorf("send message for %s: %w", requestID, err)
	}

	if err := w.requests.SetMessage(requestID, slug, messageID); err != nil {
		// The message exists; the next mirror poll records it.
		return domain.Persistence("set_message", err)
	}

	st.mirror[requestID] = messageID
	w.log.Info().Str("track", slug).Str("request", requestID).Str("message", messageID).Msg("Request mirrored")
	return nil
}

// applyRemove deletes the message of a request that left the source.
func (w *Worker) applyRemove(ctx context.Context, task queue.Task) error {
	slug, requestID := task.Target.TrackSlug, task.Target.RequestID
	st := w.track(slug)

	if st.threadID == "" {
		return domain.Inconsistent("apply_remove", "track %s has no thread", slug)
	}

	messageID := st.mirror[requestID]
	if messageID == "" {
		item, err := w.requests.Get(requestID)
		if err != nil {
			return domain.Persistence("get_request", err)
		}
		if item != nil {
			messageID = item.MessageID
		}
	}
	if messageID == "" {
		w.log.Debug().Str("request", requestID).Msg("No message to remove")
		delete(st.mirror, requestID)
		return nil
	}

	w.metrics.ObserveMirrorCall(true)
	if err := w.mirror.DeleteMessage(ctx, st.threadID, messageID); err != nil {
		return fmt.Errorf("delete message for %s: %w", requestID, err)
	}

	if err := w.requests.Delete(requestID); err != nil {
		return domain.Persistence("delete_request", err)
	}

	delete(st.mirror, requestID)
	w.log.Info().Str("track", slug).Str("request", requestID).Str("message", messageID).Msg("Request unmirrored")
	return nil
}

// reconcile enqueues the diff of a track and cancels pending apply tasks the
// diff no longer contains. No-op until both sides have been polled.
func (w *Worker) reconcile(st *trackState, now time.Time) error {
	if !st.reconcilable() {
		return nil
	}

	diff := reconcile.Diff(st.slug, st.sourceItems(), st.mirrorItems(), now)
	wanted := reconcile.Wanted(diff)

	for _, pending := range w.queue.PendingApply(st.slug) {
		if wanted[pending.Key()] {
			continue
		}
		if err := w.queue.Cancel(pending); err != nil {
			return err
		}
		w.log.Debug().Str("task", pending.Key().String()).Msg("Cancelled stale task")
	}

	added := 0
	for _, task := range diff {
		if task.Kind == queue.KindApplyAdd {
			if err := w.requests.Track(task.Target.RequestID, st.slug); err != nil {
				return domain.Persistence("track_request", err)
			}
		}
		ok, err := w.queue.Enqueue(task)
		if err != nil {
			return err
		}
		if ok {
			added++
		}
	}

	if added > 0 {
		w.log.Info().Str("track", st.slug).Int("tasks", added).Msg("Reconcile queued tasks")
	}
	return nil
}
