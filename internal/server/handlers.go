package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/work"
	"github.com/rs/zerolog"
)

// StatusHandlers serves the worker's published state.
type StatusHandlers struct {
	status   StatusProvider
	queue    TaskLister
	requests MirrorCounter
	log      zerolog.Logger
}

// NewStatusHandlers creates status handlers
func NewStatusHandlers(status StatusProvider, q TaskLister, requests MirrorCounter, log zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		status:   status,
		queue:    q,
		requests: requests,
		log:      log.With().Str("handler", "status").Logger(),
	}
}

// TrackResponse is one row of GET /api/tracks.
type TrackResponse struct {
	work.TrackStatus
	StoredMirrored int        `json:"stored_mirrored"`
	NextSourcePoll *time.Time `json:"next_source_poll,omitempty"`
	NextMirrorPoll *time.Time `json:"next_mirror_poll,omitempty"`
}

// QueueResponse is the body of GET /api/queue.
type QueueResponse struct {
	Size  int          `json:"size"`
	Tasks []queue.Task `json:"tasks"`
}

// HandleStatus returns the full snapshot
// GET /api/status
func (h *StatusHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker has not started"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleTracks returns per-track state with the next scheduled polls
// GET /api/tracks
func (h *StatusHandlers) HandleTracks(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker has not started"})
		return
	}

	counts := map[string]int{}
	if h.requests != nil {
		c, err := h.requests.CountByTrack()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count mirrored requests")
		} else {
			counts = c
		}
	}

	next := make(map[string]map[queue.TaskKind]time.Time)
	for _, e := range snap.Schedule {
		if next[e.TrackSlug] == nil {
			next[e.TrackSlug] = make(map[queue.TaskKind]time.Time)
		}
		next[e.TrackSlug][e.Kind] = e.NextDue
	}

	out := make([]TrackResponse, 0, len(snap.Tracks))
	for _, t := range snap.Tracks {
		resp := TrackResponse{TrackStatus: t, StoredMirrored: counts[t.Slug]}
		if due, ok := next[t.Slug][queue.KindPollSource]; ok {
			resp.NextSourcePoll = &due
		}
		if due, ok := next[t.Slug][queue.KindPollMirror]; ok {
			resp.NextMirrorPoll = &due
		}
		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleQueue lists pending tasks in execution order
// GET /api/queue
func (h *StatusHandlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	tasks := h.queue.Pending()
	writeJSON(w, http.StatusOK, QueueResponse{Size: len(tasks), Tasks: tasks})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
