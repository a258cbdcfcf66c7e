// Package tasks stores scheduled financial tasks (bill payments, contributions)
// and sends reminders shortly before they are due.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by the repository and validation
var (
	ErrNotFound    = errors.New("task not found")
	ErrInvalidTask = errors.New("invalid task")
)

// Task is a user's scheduled task
type Task struct {
	ScheduleDate      time.Time  `json:"schedule_date"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	NotifiedAt        *time.Time `json:"notified_at,omitempty"`
	Value             *float64   `json:"value,omitempty"`
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	TaskType          string     `json:"task_type"`
	GroupID           string     `json:"group_id,omitempty"`
	IsCompleted       bool       `json:"is_completed"`
	NotificationEmail bool       `json:"notification_email"`
	NotificationPush  bool       `json:"notification_push"`
}

// Validate checks the fields required to schedule a task
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if t.ScheduleDate.IsZero() {
		return fmt.Errorf("%w: schedule_date is required", ErrInvalidTask)
	}
	return nil
}
