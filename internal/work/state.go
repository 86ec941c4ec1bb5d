package work

import (
	"sort"
	"time"

	"github.com/aristath/requestmirror/internal/estimator"
	"github.com/aristath/requestmirror/internal/reconcile"
)

// trackState is the in-memory view of one track.
type trackState struct {
	slug     string
	threadID string

	// source is the result of the last successful source poll.
	source      map[string]reconcile.SourceItem
	sourceKnown bool

	// mirror maps request id to message id, as of the last mirror poll plus applied tasks.
	mirror      map[string]string
	mirrorKnown bool

	// seen holds request ids already counted in history.
	seen map[string]bool

	history      *estimator.History
	pollInterval time.Duration
	lastPolledAt time.Time
}

func newTrackState(slug string, historySize int, interval time.Duration) *trackState {
	return &trackState{
		slug:         slug,
		source:       make(map[string]reconcile.SourceItem),
		mirror:       make(map[string]string),
		seen:         make(map[string]bool),
		history:      estimator.NewHistory(historySize),
		pollInterval: interval,
	}
}

// reconcilable reports whether both sides are known.
func (s *trackState) reconcilable() bool {
	return s.sourceKnown && s.mirrorKnown
}

func (s *trackState) sourceItems() []reconcile.SourceItem {
	items := make([]reconcile.SourceItem, 0, len(s.source))
	for _, item := range s.source {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RequestID < items[j].RequestID })
	return items
}

func (s *trackState) mirrorItems() []reconcile.MirrorItem {
	items := make([]reconcile.MirrorItem, 0, len(s.mirror))
	for requestID, messageID := range s.mirror {
		items = append(items, reconcile.MirrorItem{RequestID: requestID, MessageID: messageID})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RequestID < items[j].RequestID })
	return items
}

func (s *trackState) status() TrackStatus {
	return TrackStatus{
		Slug:             s.slug,
		ThreadID:         s.threadID,
		SourceKnown:      s.sourceKnown,
		MirrorKnown:      s.mirrorKnown,
		SourceRequests:   len(s.source),
		MirroredRequests: len(s.mirror),
		PollInterval:     s.pollInterval,
		LastPolledAt:     s.lastPolledAt,
		RecentChanges:    s.history.Len(),
		AvgChangeGap:     estimator.MeanGap(s.history.Values()),
	}
}
