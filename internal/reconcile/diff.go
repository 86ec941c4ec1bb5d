// Package reconcile computes the apply tasks that bring a track's mirror in
// line with its source. It is pure: it never talks to either external system.
package reconcile

import (
	"sort"
	"time"

	"github.com/aristath/requestmirror/internal/queue"
)

// SourceItem is one request known from the last successful source poll.
type SourceItem struct {
	RequestID string
	Content   string // rendered mirror message
}

// MirrorItem is one request known from the mirror. An empty MessageID means
// the request is tracked but not mirrored yet.
type MirrorItem struct {
	RequestID string
	MessageID string
}

// Diff returns the ordered apply tasks for one track: an apply-add for every
// source request without a mirror message, then an apply-remove for every
// mirror message whose request left the source. Each group is sorted by
// request id. Requests present on both sides are untouched.
func Diff(track string, source []SourceItem, mirror []MirrorItem, now time.Time) []queue.Task {
	mirrored := make(map[string]bool, len(mirror))
	for _, item := range mirror {
		if item.MessageID != "" {
			mirrored[item.RequestID] = true
		}
	}

	inSource := make(map[string]bool, len(source))
	var adds []queue.Task
	for _, item := range source {
		if inSource[item.RequestID] {
			continue
		}
		inSource[item.RequestID] = true
		if mirrored[item.RequestID] {
			continue
		}
		task := queue.NewTask(queue.KindApplyAdd, queue.Target{TrackSlug: track, RequestID: item.RequestID}, now)
		task.Payload.Content = item.Content
		adds = append(adds, task)
	}

	var removes []queue.Task
	for requestID := range mirrored {
		if inSource[requestID] {
			continue
		}
		removes = append(removes, queue.NewTask(queue.KindApplyRemove, queue.Target{TrackSlug: track, RequestID: requestID}, now))
	}

	byRequest := func(tasks []queue.Task) {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].Target.RequestID < tasks[j].Target.RequestID })
	}
	byRequest(adds)
	byRequest(removes)

	return append(adds, removes...)
}

// Apply returns the mirror that results from executing tasks against mirror.
// Added requests get a placeholder message id.
func Apply(mirror []MirrorItem, tasks []queue.Task) []MirrorItem {
	state := make(map[string]string, len(mirror))
	for _, item := range mirror {
		state[item.RequestID] = item.MessageID
	}

	for _, task := range tasks {
		switch task.Kind {
		case queue.KindApplyAdd:
			state[task.Target.RequestID] = "applied:" + task.Target.RequestID
		case queue.KindApplyRemove:
			delete(state, task.Target.RequestID)
		}
	}

	out := make([]MirrorItem, 0, len(state))
	for requestID, messageID := range state {
		out = append(out, MirrorItem{RequestID: requestID, MessageID: messageID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

// Wanted returns the keys of tasks, for matching against pending work.
func Wanted(tasks []queue.Task) map[queue.Key]bool {
	keys := make(map[queue.Key]bool, len(tasks))
	for _, task := range tasks {
		keys[task.Key()] = true
	}
	return keys
}
