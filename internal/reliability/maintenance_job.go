package reliability

import (
	"fmt"
	"time"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free space thresholds for the data directory.
const (
	diskCriticalBytes = 200 << 20 // 200 MB
	diskWarnBytes     = 1 << 30   // 1 GB
)

// MaintenanceJob performs daily database maintenance: integrity check,
// WAL truncation and a disk space check.
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	log     zerolog.Logger
}

// NewMaintenanceJob creates a new daily maintenance job
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	// Step 1: Integrity check
	var result string
	if err := j.db.Conn().QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}
	if result != "ok" {
		j.log.Error().Str("result", result).Msg("CRITICAL: Database integrity check failed")
		return fmt.Errorf("database %s failed integrity check: %s", j.db.Name(), result)
	}

	// Step 2: Truncate the WAL (the frequent passive checkpoint never shrinks it)
	if _, err := j.db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		// Don't return error - this is not critical
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")
	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeMB := float64(usage.Free) / (1 << 20)
	j.log.Debug().Float64("free_mb", freeMB).Msg("Disk space check")

	if usage.Free < diskCriticalBytes {
		j.log.Error().
			Float64("free_mb", freeMB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.0f MB free in %s", freeMB, j.dataDir)
	}

	if usage.Free < diskWarnBytes {
		j.log.Warn().
			Float64("free_mb", freeMB).
			Msg("Disk space running low")
	}
	return nil
}
