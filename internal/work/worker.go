package work

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/aristath/requestmirror/internal/metrics"
	"github.com/aristath/requestmirror/internal/modules/requests"
	"github.com/aristath/requestmirror/internal/modules/tracks"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/scheduler"
	"github.com/rs/zerolog"
)

// Defaults for Config fields left zero.
const (
	DefaultTickInterval = 5 * time.Second
	DefaultTaskTimeout  = 30 * time.Second
	DefaultHistorySize  = 20
)

// Config tunes the worker.
type Config struct {
	PollMin      time.Duration
	PollMax      time.Duration
	HistorySize  int
	TickInterval time.Duration
	TaskTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollMin <= 0 {
		c.PollMin = 5 * time.Minute
	}
	if c.PollMax < c.PollMin {
		c.PollMax = c.PollMin
	}
	if c.HistorySize < 2 {
		c.HistorySize = DefaultHistorySize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	return c
}

// Deps are the worker's collaborators.
type Deps struct {
	Source    domain.SourceClient
	Mirror    domain.MirrorClient
	Queue     *queue.Queue
	Scheduler *scheduler.PollScheduler
	Tracks    *tracks.Repository
	Requests  *requests.Repository
	Metrics   *metrics.Metrics
	Bus       *events.Bus      // optional
	Now       func() time.Time // optional, defaults to time.Now
}

// Worker executes queued tasks one at a time.
type Worker struct {
	cfg       Config
	source    domain.SourceClient
	mirror    domain.MirrorClient
	queue     *queue.Queue
	scheduler *scheduler.PollScheduler
	tracks    *tracks.Repository
	requests  *requests.Repository
	metrics   *metrics.Metrics
	bus       *events.Bus
	now       func() time.Time
	registry  *Registry
	log       zerolog.Logger

	// runLock is held for a whole iteration, external calls included.
	runLock sync.Mutex

	// state is only touched while runLock is held.
	state map[string]*trackState

	iterations uint64
	lastResult *TaskResult
	skipped    atomic.Uint64
	snapshot   atomic.Pointer[Snapshot]

	stop    chan struct{}
	stopped chan struct{}
}

// New creates a worker and registers the handlers of the four task kinds.
func New(cfg Config, deps Deps, log zerolog.Logger) *Worker {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	w := &Worker{
		cfg:       cfg.withDefaults(),
		source:    deps.Source,
		mirror:    deps.Mirror,
		queue:     deps.Queue,
		scheduler: deps.Scheduler,
		tracks:    deps.Tracks,
		requests:  deps.Requests,
		metrics:   deps.Metrics,
		bus:       deps.Bus,
		now:       now,
		registry:  NewRegistry(),
		log:       log.With().Str("component", "worker").Logger(),
		state:     make(map[string]*trackState),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	w.registry.Register(queue.KindPollSource, w.pollSource)
	w.registry.Register(queue.KindPollMirror, w.pollMirror)
	w.registry.Register(queue.KindApplyAdd, w.applyAdd)
	w.registry.Register(queue.KindApplyRemove, w.applyRemove)

	w.snapshot.Store(&Snapshot{GeneratedAt: now()})
	return w
}

// Run ticks until ctx is cancelled or Stop is called. This blocks.
// Each tick runs on its own goroutine so a long iteration makes later ticks
// contend for the run-lock instead of queueing up.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	w.log.Info().Dur("tick", w.cfg.TickInterval).Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping")
			return
		case <-w.stop:
			w.log.Info().Msg("Worker stopping")
			return
		case <-ticker.C:
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				w.Tick(ctx)
			}()
		}
	}
}

// Stop ends Run and waits for the running iteration to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.stopped
}

// Tick runs one iteration if no other iteration is running.
// Returns false when the tick was skipped.
func (w *Worker) Tick(ctx context.Context) bool {
	if !w.runLock.TryLock() {
		w.skipped.Add(1)
		w.metrics.SkippedTicks.Inc()
		return false
	}
	defer w.runLock.Unlock()

	w.iterate(ctx)
	return true
}

// SkippedTicks returns how many ticks found the run-lock held.
func (w *Worker) SkippedTicks() uint64 {
	return w.skipped.Load()
}

// Snapshot returns the last published snapshot.
func (w *Worker) Snapshot() *Snapshot {
	return w.snapshot.Load()
}

func (w *Worker) iterate(ctx context.Context) {
	defer w.publish()
	w.iterations++

	now := w.now()
	w.offerPoll(now)

	task, ok := w.queue.PeekDue(now)
	if !ok {
		return
	}

	w.execute(ctx, task)
}

// offerPoll moves at most one due poll from the scheduler into the queue.
func (w *Worker) offerPoll(now time.Time) {
	task, ok := w.scheduler.SelectDue(now)
	if !ok {
		return
	}

	added, err := w.queue.Enqueue(task)
	if err != nil {
		w.scheduler.Release(task)
		w.log.Error().Err(err).Str("task", task.Key().String()).Msg("Failed to enqueue poll")
		return
	}
	if !added {
		w.log.Debug().Str("task", task.Key().String()).Msg("Poll already queued")
	}
}

func (w *Worker) execute(ctx context.Context, task queue.Task) {
	handler := w.registry.Get(task.Kind)
	if handler == nil {
		w.finish(task, domain.Inconsistent("dispatch", "no handler for kind %q", task.Kind), 0)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := handler(taskCtx, task)
	if err != nil && taskCtx.Err() == context.DeadlineExceeded {
		err = domain.Transient("timeout", fmt.Errorf("%s timed out after %s: %w", task.Key(), w.cfg.TaskTimeout, err))
	}
	w.finish(task, err, time.Since(start))
}

// finish applies the outcome of a task to the queue and reports it.
func (w *Worker) finish(task queue.Task, err error, took time.Duration) {
	key := task.Key().String()
	outcome := metrics.OutcomeSuccess
	attempts := task.Attempts

	switch {
	case err == nil:
		if rmErr := w.queue.Remove(task); rmErr != nil {
			// The effects are applied; the task runs again and finds nothing to do.
			w.log.Error().Err(rmErr).Str("task", key).Msg("Failed to remove completed task")
		}
		w.log.Debug().Str("task", key).Dur("took", took).Msg("Task completed")

	case domain.KindOf(err) == domain.KindDataInconsistency:
		outcome = metrics.OutcomeDropped
		if rmErr := w.queue.Remove(task); rmErr != nil {
			w.log.Error().Err(rmErr).Str("task", key).Msg("Failed to drop inconsistent task")
		}
		if task.Kind.IsPoll() {
			w.reschedulePoll(task.Kind, task.Target.TrackSlug, w.now())
		}
		w.log.Warn().Err(err).Str("task", key).Msg("Task dropped: data inconsistency")

	default:
		outcome = metrics.OutcomeFailure
		failed, mfErr := w.queue.MarkFailed(task, w.now())
		if mfErr != nil {
			w.log.Error().Err(mfErr).Str("task", key).Msg("Failed to record task failure")
		}
		attempts = failed.Attempts
		w.log.Warn().
			Err(err).
			Str("task", key).
			Str("kind", domain.KindOf(err).String()).
			Int("attempts", attempts).
			Msg("Task failed, will retry")
	}

	w.metrics.Tasks.WithLabelValues(string(task.Kind), outcome).Inc()
	if task.Kind.IsPoll() {
		w.metrics.ObservePoll(task.Target.TrackSlug, string(task.Kind), outcome, took)
	}

	result := &TaskResult{
		Task:       task,
		Outcome:    outcome,
		Duration:   took,
		FinishedAt: w.now(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	w.lastResult = result

	if w.bus != nil {
		w.bus.Emit("worker", &events.TaskExecutedData{
			TaskID:    task.ID,
			Kind:      string(task.Kind),
			TrackSlug: task.Target.TrackSlug,
			RequestID: task.Target.RequestID,
			Outcome:   outcome,
			Attempts:  attempts,
			Duration:  took,
			Error:     result.Error,
		})
	}
}

func (w *Worker) reschedulePoll(kind queue.TaskKind, slug string, now time.Time) time.Time {
	if kind == queue.KindPollMirror {
		return w.scheduler.RescheduleMirror(slug, now)
	}
	interval := w.cfg.PollMax
	if st, ok := w.state[slug]; ok && st.pollInterval > 0 {
		interval = st.pollInterval
	}
	return w.scheduler.RescheduleSource(slug, now, interval)
}

// publish stores a fresh snapshot. Called with runLock held.
func (w *Worker) publish() {
	slugs := make([]string, 0, len(w.state))
	for slug := range w.state {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	statuses := make([]TrackStatus, 0, len(slugs))
	for _, slug := range slugs {
		statuses = append(statuses, w.state[slug].status())
	}

	size := w.queue.Len()
	w.metrics.QueueSize.Set(float64(size))

	w.snapshot.Store(&Snapshot{
		GeneratedAt: w.now(),
		Iterations:  w.iterations,
		QueueSize:   size,
		LastResult:  w.lastResult,
		Tracks:      statuses,
		Schedule:    w.scheduler.Entries(),
	})
}

// track returns the state of a track, creating it on first use.
func (w *Worker) track(slug string) *trackState {
	st, ok := w.state[slug]
	if !ok {
		st = newTrackState(slug, w.cfg.HistorySize, w.cfg.PollMax)
		w.state[slug] = st
	}
	return st
}
