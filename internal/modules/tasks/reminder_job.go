package tasks

import (
	"context"
	"time"

	"github.com/aristath/famfin/internal/scheduler/base"
	"github.com/rs/zerolog"
)

// ReminderWindow is how far ahead of now a task must be scheduled to get a reminder
const ReminderWindow = time.Minute

// ReminderResult summarizes one reminder pass
type ReminderResult struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// ReminderJob notifies users about tasks due within ReminderWindow. Runs every minute.
type ReminderJob struct {
	base.JobBase
	repo     *Repository
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// NewReminderJob creates the job
func NewReminderJob(repo *Repository, notifier Notifier, log zerolog.Logger) *ReminderJob {
	return &ReminderJob{
		JobBase:  base.JobBase{Timeout: 50 * time.Second},
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		log:      log.With().Str("job", "task_reminders").Logger(),
	}
}

func (j *ReminderJob) Name() string {
	return "task_reminders"
}

func (j *ReminderJob) Run() error {
	ctx, cancel := j.RunContext()
	defer cancel()

	_, err := j.Check(ctx)
	return err
}

// Check sends reminders for due tasks. Each task is marked notified whether or
// not delivery succeeded so a failing channel cannot cause repeated reminders.
func (j *ReminderJob) Check(ctx context.Context) (ReminderResult, error) {
	now := j.now()
	due, err := j.repo.DueForReminder(ctx, now, now.Add(ReminderWindow))
	if err != nil {
		return ReminderResult{}, err
	}

	result := ReminderResult{Checked: len(due)}
	for _, task := range due {
		if err := j.notifier.Notify(ctx, NotificationFor(task, ChannelPush)); err != nil {
			result.Failed++
			j.log.Warn().Err(err).Str("task_id", task.ID).Msg("Push reminder failed")
		} else {
			result.Sent++
		}

		if err := j.repo.MarkNotified(ctx, task.ID, j.now()); err != nil {
			j.log.Error().Err(err).Str("task_id", task.ID).Msg("Failed to mark task notified")
		}

		if task.NotificationEmail {
			if err := j.notifier.Notify(ctx, NotificationFor(task, ChannelEmail)); err != nil {
				j.log.Warn().Err(err).Str("task_id", task.ID).Msg("Email reminder failed")
			}
		}
	}

	if result.Checked > 0 {
		j.log.Info().
			Int("checked", result.Checked).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Msg("Reminder pass completed")
	}
	return result, nil
}
