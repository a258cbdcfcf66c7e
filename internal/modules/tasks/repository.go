package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/famfin/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// taskColumns must match scanTask
const taskColumns = `id, user_id, title, description, category, task_type, schedule_date, value,
is_completed, notification_email, notification_push, notified_at, group_id, created_at, updated_at`

// Repository handles scheduled_tasks in the app database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new task repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "scheduled_tasks").Logger(),
	}
}

// Create inserts task, assigning ID and timestamps
func (r *Repository) Create(ctx context.Context, task *Task) error {
	now := r.now().UTC().Truncate(time.Second)
	task.ID = uuid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks
		(id, user_id, title, description, category, task_type, schedule_date, value,
		 is_completed, notification_email, notification_push, notified_at, group_id,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Category,
		task.TaskType,
		task.ScheduleDate.Unix(),
		nullFloat(task.Value),
		boolToInt(task.IsCompleted),
		boolToInt(task.NotificationEmail),
		boolToInt(task.NotificationPush),
		nullTimeUnix(task.NotifiedAt),
		nullString(task.GroupID),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of task. notified_at is kept unless the
// task was rescheduled, so the new date gets its own reminder.
func (r *Repository) Update(ctx context.Context, task *Task) error {
	current, err := r.GetByID(ctx, task.UserID, task.ID)
	if err != nil {
		return err
	}
	task.NotifiedAt = current.NotifiedAt
	if !current.ScheduleDate.Equal(task.ScheduleDate) {
		task.NotifiedAt = nil
	}

	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = r.now().UTC().Truncate(time.Second)

	_, err = r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET
			title = ?, description = ?, category = ?, task_type = ?, schedule_date = ?, value = ?,
			is_completed = ?, notification_email = ?, notification_push = ?, notified_at = ?,
			group_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		task.Title,
		task.Description,
		task.Category,
		task.TaskType,
		task.ScheduleDate.Unix(),
		nullFloat(task.Value),
		boolToInt(task.IsCompleted),
		boolToInt(task.NotificationEmail),
		boolToInt(task.NotificationPush),
		nullTimeUnix(task.NotifiedAt),
		nullString(task.GroupID),
		task.UpdatedAt.Unix(),
		task.ID,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// GetByID returns one of the user's tasks
func (r *Repository) GetByID(ctx context.Context, userID, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM scheduled_tasks WHERE id = ? AND user_id = ?",
		id, userID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// ListByUser returns the user's tasks by schedule date. Completed tasks are
// included only when includeCompleted is set.
func (r *Repository) ListByUser(ctx context.Context, userID string, includeCompleted bool) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM scheduled_tasks WHERE user_id = ?"
	if !includeCompleted {
		query += " AND is_completed = 0"
	}
	query += " ORDER BY schedule_date, created_at"

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Delete removes one of the user's tasks
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DueForReminder returns open, push-enabled, not yet notified tasks scheduled
// in [from, to]
func (r *Repository) DueForReminder(ctx context.Context, from, to time.Time) ([]Task, error) {
	done := utils.MeasureDBQuery("due_for_reminder", r.log)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE is_completed = 0
		  AND notification_push = 1
		  AND notified_at IS NULL
		  AND schedule_date >= ? AND schedule_date <= ?
		ORDER BY schedule_date
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	done(int64(len(tasks)))
	return tasks, err
}

// MarkNotified records that a reminder went out for the task
func (r *Repository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE scheduled_tasks SET notified_at = ?, updated_at = ? WHERE id = ?",
		at.Unix(), at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark task %s notified: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s scanner) (Task, error) {
	var (
		t                                Task
		scheduleDate, createdAt, updated int64
		value                            sql.NullFloat64
		completed, email, push           int
		notifiedAt                       sql.NullInt64
		groupID                          sql.NullString
	)
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.TaskType,
		&scheduleDate,
		&value,
		&completed,
		&email,
		&push,
		&notifiedAt,
		&groupID,
		&createdAt,
		&updated,
	)
	if err != nil {
		return t, err
	}

	t.ScheduleDate = time.Unix(scheduleDate, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	if value.Valid {
		v := value.Float64
		t.Value = &v
	}
	if notifiedAt.Valid {
		n := time.Unix(notifiedAt.Int64, 0).UTC()
		t.NotifiedAt = &n
	}
	t.GroupID = groupID.String
	t.IsCompleted = completed != 0
	t.NotificationEmail = email != 0
	t.NotificationPush = push != 0
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Helper functions for nullable columns

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTimeUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
