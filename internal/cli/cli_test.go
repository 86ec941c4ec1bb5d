package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/aristath/requestmirror/internal/di"
	"github.com/aristath/requestmirror/internal/modules/tracks"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	color.NoColor = true
}

func TestHumanizeUntil(t *testing.T) {
	assert.Equal(t, "never", humanizeUntil(time.Time{}, now))
	assert.Equal(t, "in 4m0s", humanizeUntil(now.Add(4*time.Minute), now))
	assert.Equal(t, "3m12s ago", humanizeUntil(now.Add(-3*time.Minute-12*time.Second), now))
	assert.Equal(t, "now", humanizeUntil(now, now))
}

func TestRenderQueue(t *testing.T) {
	tasks := []queue.Task{
		{Kind: queue.KindPollMirror, Target: queue.Target{TrackSlug: "go"}, ScheduledAt: now.Add(time.Minute)},
		{Kind: queue.KindApplyAdd, Target: queue.Target{TrackSlug: "rust", RequestID: "abc"}, ScheduledAt: now.Add(-time.Second), Attempts: 2},
	}

	var buf bytes.Buffer
	renderQueue(&buf, tasks, now)
	out := buf.String()

	assert.Contains(t, out, "Pending tasks (2):")
	assert.Contains(t, out, "rust/abc")
	assert.Contains(t, out, "(attempts: 2)")
	assert.Contains(t, out, "in 1m0s")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("rust/abc")), bytes.Index(buf.Bytes(), []byte("in 1m0s")))
}

func TestRenderQueue_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderQueue(&buf, nil, now)
	assert.Equal(t, "Queue is empty\n", buf.String())
}

func TestFilterTasks(t *testing.T) {
	tasks := []queue.Task{
		{Kind: queue.KindPollSource, Target: queue.Target{TrackSlug: "go"}},
		{Kind: queue.KindPollSource, Target: queue.Target{TrackSlug: "rust"}},
	}
	got := filterTasks(tasks, "rust")
	assert.Len(t, got, 1)
	assert.Equal(t, "rust", got[0].Target.TrackSlug)
	assert.Len(t, tasks, 2)
}

type namedJob string

func (j namedJob) Name() string { return string(j) }
func (j namedJob) Run() error   { return nil }

func TestRenderJobs(t *testing.T) {
	jobs := &di.JobInstances{
		WALCheckpoint:     namedJob("wal_checkpoint"),
		Maintenance:       namedJob("daily_maintenance"),
		ClientDataCleanup: namedJob("client_data_cleanup"),
	}

	var buf bytes.Buffer
	renderJobs(&buf, jobs)

	assert.Equal(t, "Registered jobs:\n  wal_checkpoint\n  daily_maintenance\n  client_data_cleanup\n", buf.String())
}

func TestRenderTracks(t *testing.T) {
	all := []tracks.Track{
		{Slug: "go", ThreadID: "1100", PollInterval: 7 * time.Minute, LastPolledAt: now.Add(-2 * time.Minute)},
		{Slug: "rust"},
	}

	var buf bytes.Buffer
	renderTracks(&buf, all, map[string]int{"go": 3}, now)
	out := buf.String()

	assert.Contains(t, out, "Tracks (2):")
	assert.Contains(t, out, "1100")
	assert.Contains(t, out, "7m0s")
	assert.Contains(t, out, "2m0s ago")
	assert.Contains(t, out, "no thread")
	assert.Contains(t, out, "never")
}
