package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob sweeps expired cache entries. Scheduled daily.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the cache sweep job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run deletes expired entries from every cache table.
func (j *CleanupJob) Run() error {
	swept, err := j.repo.DeleteAllExpired()
	if err != nil {
		return err
	}

	var total int64
	perTable := zerolog.Dict()
	for table, n := range swept {
		perTable.Int64(string(table), n)
		total += n
	}
	if total == 0 {
		return nil
	}

	j.log.Info().Int64("deleted", total).Dict("tables", perTable).Msg("Expired cache entries removed")
	return nil
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
