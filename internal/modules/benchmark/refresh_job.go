package benchmark

import (
	"github.com/aristath/famfin/internal/scheduler/base"
	"github.com/aristath/famfin/internal/utils"
	"github.com/rs/zerolog"
)

// RefreshJob rebuilds the default CDI series after BCB publishes the day's rate
type RefreshJob struct {
	base.JobBase
	service *Service
	log     zerolog.Logger
}

// NewRefreshJob creates the job
func NewRefreshJob(service *Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		log:     log.With().Str("job", "cdi_refresh").Logger(),
	}
}

func (j *RefreshJob) Name() string {
	return "cdi_refresh"
}

func (j *RefreshJob) Run() error {
	defer utils.OperationTimer("cdi_refresh", j.log)()

	ctx, cancel := j.RunContext()
	defer cancel()

	if err := j.service.Refresh(ctx); err != nil {
		j.log.Error().Err(err).Msg("CDI refresh failed")
		return err
	}
	return nil
}
