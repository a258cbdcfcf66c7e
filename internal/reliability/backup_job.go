package reliability

import (
	"fmt"
	"time"

	"github.com/aristath/famfin/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// BackupJob uploads a fresh backup and then rotates old ones
type BackupJob struct {
	base.JobBase
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		JobBase: base.JobBase{Timeout: 10 * time.Minute},
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

func (j *BackupJob) Name() string {
	return "backup"
}

func (j *BackupJob) Run() error {
	ctx, cancel := j.RunContext()
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if _, err := j.service.Rotate(ctx); err != nil {
		// A failed rotation leaves extra archives behind; the upload already succeeded.
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
