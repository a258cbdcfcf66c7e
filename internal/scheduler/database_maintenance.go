package scheduler

import (
	"fmt"
	"sort"

	"github.com/aristath/famfin/internal/database"
	"github.com/rs/zerolog"
)

// walFrameThreshold is the WAL size (in frames) above which a TRUNCATE checkpoint runs
const walFrameThreshold = 1000

// DatabaseMaintenanceJob checks integrity and keeps WAL files small
type DatabaseMaintenanceJob struct {
	JobBase
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewDatabaseMaintenanceJob creates a maintenance job over the named databases
func NewDatabaseMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		log:       log.With().Str("job", "database_maintenance").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks every database. Corruption is reported as an error; WAL
// checkpoint failures are only logged.
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := j.RunContext()
	defer cancel()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	checked := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return fmt.Errorf("database %s failed health check: %w", name, err)
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		if err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
			continue
		}

		if frames > walFrameThreshold {
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", name).Int("wal_frames", frames).Msg("WAL truncate failed")
			} else {
				j.log.Info().Str("database", name).Int("wal_frames", frames).Msg("WAL truncated")
			}
		}

		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("Database maintenance completed")
	return nil
}
