package tasks

import (
	"context"

	"github.com/rs/zerolog"
)

// Channel is a reminder delivery channel
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Notification is a reminder addressed to a user
type Notification struct {
	Channel Channel `json:"channel"`
	UserID  string  `json:"user_id"`
	TaskID  string  `json:"task_id"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Tag     string  `json:"tag"` // Collapses repeated reminders for the same task
}

// Notifier delivers reminders
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes reminders to the log. Used when no delivery backend is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("notifier", "log").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.Info().
		Str("channel", string(notification.Channel)).
		Str("user_id", notification.UserID).
		Str("task_id", notification.TaskID).
		Str("title", notification.Title).
		Msg("Reminder")
	return nil
}

// NotificationFor builds the reminder sent for task on channel
func NotificationFor(task Task, channel Channel) Notification {
	body := task.Description
	if body == "" {
		body = "Scheduled task is almost due"
	}
	return Notification{
		Channel: channel,
		UserID:  task.UserID,
		TaskID:  task.ID,
		Title:   task.Title,
		Body:    body,
		Tag:     "task-" + task.ID,
	}
}
