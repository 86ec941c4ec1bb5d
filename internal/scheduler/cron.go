package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a periodic maintenance job run on a cron schedule.
type Job interface {
	Run() error
	Name() string
}

// Cron runs maintenance jobs (backups, WAL checkpoints) beside the worker.
// Jobs never take the worker's run-lock.
type Cron struct {
	cron *cron.Cron
	jobs []string
	log  zerolog.Logger
}

// NewCron creates a cron runner. Schedules include a seconds field.
func NewCron(log zerolog.Logger) *Cron {
	return &Cron{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "cron").Logger(),
	}
}

// Start starts the cron runner
func (c *Cron) Start() {
	c.cron.Start()
	c.log.Info().Int("jobs", len(c.jobs)).Msg("Cron started")
}

// Stop stops the runner and waits for running jobs to finish
func (c *Cron) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.log.Info().Msg("Cron stopped")
}

// AddJob registers a job with a cron schedule
// Schedule examples:
//   - "0 0 3 * * *"        - Daily at 3 AM
//   - "0 */15 * * * *"     - Every 15 minutes
//   - "@every 1h"          - Every hour
func (c *Cron) AddJob(schedule string, job Job) error {
	_, err := c.cron.AddFunc(schedule, func() {
		c.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			c.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			c.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	c.jobs = append(c.jobs, job.Name())
	c.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// Jobs returns the names of registered jobs
func (c *Cron) Jobs() []string {
	return append([]string(nil), c.jobs...)
}

// RunNow executes a job immediately (outside schedule)
func (c *Cron) RunNow(job Job) error {
	c.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
