// Package di provides dependency injection for scheduler jobs.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/config"
	"github.com/aristath/famfin/internal/modules/benchmark"
	"github.com/aristath/famfin/internal/modules/tasks"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules (six-field cron, seconds first)
const (
	ScheduleTaskReminders       = "0 * * * * *"
	ScheduleMonitorCleanup      = "0 5 * * * *"
	ScheduleDatabaseMaintenance = "0 30 4 * * *"
	ScheduleCDIRefresh          = "0 0 9,18 * * *"
)

// RegisterJobs creates the background jobs and registers them with the
// container's scheduler. Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Scheduler == nil {
		return nil, fmt.Errorf("scheduler not initialized")
	}

	instances := &JobInstances{
		CacheCleanup:        clientdata.NewCleanupJob(container.CacheRepo, container.CacheRegistry, log),
		MonitorCleanup:      reliability.NewMonitorCleanupJob(container.Monitor, reliability.DefaultMetricsWindow, log),
		DatabaseMaintenance: scheduler.NewDatabaseMaintenanceJob(databasesByName(container), log),
		TaskReminders:       tasks.NewReminderJob(container.TaskRepo, container.Notifier, log),
		CDIRefresh:          benchmark.NewRefreshJob(container.BenchmarkService, log),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Cache.SweepSchedule, instances.CacheCleanup},
		{ScheduleMonitorCleanup, instances.MonitorCleanup},
		{ScheduleDatabaseMaintenance, instances.DatabaseMaintenance},
		{ScheduleTaskReminders, instances.TaskReminders},
		{ScheduleCDIRefresh, instances.CDIRefresh},
	}

	if cfg.Backup.Enabled() {
		backup, err := newBackupJob(container, cfg, log)
		if err != nil {
			return nil, err
		}
		instances.Backup = backup
		schedules = append(schedules, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Backup.Schedule, backup})
	} else {
		log.Info().Msg("Backup bucket not configured, backups disabled")
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, err
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Jobs registered")

	return instances, nil
}

func newBackupJob(container *Container, cfg *config.Config, log zerolog.Logger) (*reliability.BackupJob, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := reliability.NewS3Store(ctx, reliability.S3Config{
		Bucket:          cfg.Backup.Bucket,
		Endpoint:        cfg.Backup.Endpoint,
		Region:          cfg.Backup.Region,
		AccessKeyID:     cfg.Backup.AccessKeyID,
		SecretAccessKey: cfg.Backup.SecretAccessKey,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup store: %w", err)
	}

	service := reliability.NewBackupService(
		store,
		[]reliability.Snapshotter{container.LedgerDB, container.AppDB},
		cfg.DataDir,
		cfg.Backup.Retain,
		log,
	)
	return reliability.NewBackupJob(service, log), nil
}
