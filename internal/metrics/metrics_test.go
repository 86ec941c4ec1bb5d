package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePoll(t *testing.T) {
	m := New()

	m.ObservePoll("go", "poll-source", OutcomeSuccess, 200*time.Millisecond)
	m.ObservePoll("go", "poll-source", OutcomeSuccess, 100*time.Millisecond)
	m.ObservePoll("go", "poll-source", OutcomeFailure, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Polls.WithLabelValues("go", "poll-source", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("go", "poll-source", OutcomeFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PollLatency))
}

func TestObserveMirrorCall(t *testing.T) {
	m := New()

	m.ObserveMirrorCall(true)
	m.ObserveMirrorCall(false)
	m.ObserveMirrorCall(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MirrorRPC.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MirrorRPC.WithLabelValues("false")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	m := New()
	m.QueueSize.Set(3)
	m.SkippedTicks.Inc()
	m.PollInterval.WithLabelValues("rust").Set(300)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "requestmirror_task_queue_size 3"))
	assert.True(t, strings.Contains(body, "requestmirror_skipped_ticks_total 1"))
	assert.True(t, strings.Contains(body, `requestmirror_poll_interval_seconds{track="rust"} 300`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
