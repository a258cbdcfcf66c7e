package clientdata

import (
	"github.com/aristath/famfin/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// CleanupJob evicts expired entries from the in-memory caches and the
// persisted cache tables. Expiry is already enforced on read, so this only
// bounds memory and disk use. Persisted rows outlive their expiry by
// StaleRetention so they can still serve as a fallback.
type CleanupJob struct {
	base.JobBase
	repo     *Repository
	registry *Registry
	log      zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job. Either source may be nil.
func NewCleanupJob(repo *Repository, registry *Registry, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:     repo,
		registry: registry,
		log:      log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run sweeps the caches, then the persisted tables.
func (j *CleanupJob) Run() error {
	if j.registry != nil {
		for name, removed := range j.registry.Cleanup() {
			if removed > 0 {
				j.log.Debug().Str("cache", name).Int("evicted", removed).Msg("Swept in-memory cache")
			}
		}
	}

	if j.repo == nil {
		return nil
	}

	results, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired client data")
		return err
	}

	var totalDeleted int64
	for table, count := range results {
		if count > 0 {
			j.log.Info().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Client data cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
