// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/requestmirror/internal/clientdata"
	"github.com/aristath/requestmirror/internal/database"
	"github.com/aristath/requestmirror/internal/domain"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/aristath/requestmirror/internal/metrics"
	"github.com/aristath/requestmirror/internal/modules/requests"
	"github.com/aristath/requestmirror/internal/modules/tracks"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/reliability"
	"github.com/aristath/requestmirror/internal/scheduler"
	"github.com/aristath/requestmirror/internal/work"
)

// Container holds all dependencies for the application.
// It is created by Wire and is the single source of truth for service instances.
type Container struct {
	// Database
	DB *database.DB

	// Repositories
	TrackRepo      *tracks.Repository
	RequestRepo    *requests.Repository
	TaskRepo       *queue.Repository
	ClientDataRepo *clientdata.Repository

	// Clients
	Source domain.SourceClient
	Mirror domain.MirrorClient

	// Core
	Metrics       *metrics.Metrics
	EventBus      *events.Bus
	Queue         *queue.Queue
	PollScheduler *scheduler.PollScheduler
	Worker        *work.Worker
	Cron          *scheduler.Cron

	// Reliability (BackupService is nil when backups are disabled)
	BackupService *reliability.BackupService
}

// JobInstances holds the registered cron jobs for manual triggering.
type JobInstances struct {
	WALCheckpoint     scheduler.Job
	ClientDataCleanup scheduler.Job
	Maintenance       scheduler.Job
	Backup            scheduler.Job // nil when backups are disabled
}

// All returns the registered jobs, skipping disabled ones.
func (j *JobInstances) All() []scheduler.Job {
	var jobs []scheduler.Job
	for _, job := range []scheduler.Job{j.WALCheckpoint, j.Maintenance, j.ClientDataCleanup, j.Backup} {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Find returns the registered job with the given name.
func (j *JobInstances) Find(name string) (scheduler.Job, bool) {
	for _, job := range j.All() {
		if job.Name() == name {
			return job, true
		}
	}
	return nil, false
}

// Close releases the container's resources.
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
