package scheduler

import (
	"fmt"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size (in frames) above which a checkpoint is logged as lagging.
const walWarnFrames = 1000

// WALCheckpointJob runs a passive WAL checkpoint on the mirror database and
// reports how far the log has grown.
type WALCheckpointJob struct {
	log zerolog.Logger
	db  *database.DB
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		log: zerolog.Nop(),
		db:  db,
	}
}

// SetLogger sets the logger for the job
func (j *WALCheckpointJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint
func (j *WALCheckpointJob) Run() error {
	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return fmt.Errorf("wal checkpoint on %s: %w", j.db.Name(), err)
	}

	if frames > walWarnFrames {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, checkpoint is lagging")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL checkpoint OK")
	}

	return nil
}
