package reliability

import (
	"time"

	"github.com/rs/zerolog"
)

// MonitorCleanupJob prunes old call records from a Monitor
type MonitorCleanupJob struct {
	monitor *Monitor
	window  time.Duration
	log     zerolog.Logger
}

// NewMonitorCleanupJob creates the job; a non-positive window uses DefaultMetricsWindow
func NewMonitorCleanupJob(monitor *Monitor, window time.Duration, log zerolog.Logger) *MonitorCleanupJob {
	if window <= 0 {
		window = DefaultMetricsWindow
	}
	return &MonitorCleanupJob{
		monitor: monitor,
		window:  window,
		log:     log.With().Str("job", "monitor_cleanup").Logger(),
	}
}

func (j *MonitorCleanupJob) Name() string {
	return "monitor_cleanup"
}

func (j *MonitorCleanupJob) Run() error {
	removed := j.monitor.Cleanup(j.window)
	if removed > 0 {
		j.log.Debug().Int("removed", removed).Msg("Pruned call records")
	}
	return nil
}
