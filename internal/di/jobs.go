package di

import (
	"fmt"

	"github.com/aristath/requestmirror/internal/clientdata"
	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/reliability"
	"github.com/aristath/requestmirror/internal/scheduler"
	"github.com/rs/zerolog"
)

// Cron schedules (seconds field included)
const (
	ScheduleWALCheckpoint     = "0 */5 * * * *" // every 5 minutes
	ScheduleMaintenance       = "0 0 2 * * *"   // daily at 2:00
	ScheduleClientDataCleanup = "0 30 4 * * *"  // daily at 4:30
)

// RegisterJobs creates the maintenance jobs and registers them with the cron runner
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Cron == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}

	walJob := scheduler.NewWALCheckpointJob(container.DB)
	walJob.SetLogger(log)
	if err := container.Cron.AddJob(ScheduleWALCheckpoint, walJob); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	instances.WALCheckpoint = walJob

	maintenance := reliability.NewMaintenanceJob(container.DB, cfg.DataDir, log)
	if err := container.Cron.AddJob(ScheduleMaintenance, maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}
	instances.Maintenance = maintenance

	cleanup := clientdata.NewCleanupJob(container.ClientDataRepo, log)
	if err := container.Cron.AddJob(ScheduleClientDataCleanup, cleanup); err != nil {
		return nil, fmt.Errorf("failed to register client data cleanup job: %w", err)
	}
	instances.ClientDataCleanup = cleanup

	if container.BackupService != nil {
		if err := container.Cron.AddJob(cfg.Backup.Schedule, container.BackupService); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
		instances.Backup = container.BackupService
	}

	log.Info().Strs("jobs", container.Cron.Jobs()).Msg("Jobs registered")
	return instances, nil
}
