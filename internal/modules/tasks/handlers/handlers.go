// Package handlers provides HTTP handlers for scheduled tasks.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/famfin/internal/modules/tasks"
	"github.com/aristath/famfin/internal/server/request"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles task HTTP requests
type Handler struct {
	repo      *tasks.Repository
	reminders *tasks.ReminderJob
	log       zerolog.Logger
}

// NewHandler creates a new tasks handler
func NewHandler(repo *tasks.Repository, reminders *tasks.ReminderJob, log zerolog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		reminders: reminders,
		log:       log.With().Str("handler", "tasks").Logger(),
	}
}

// TaskRequest is the body of task create and update requests
type TaskRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	TaskType          string   `json:"task_type"`
	ScheduleDate      string   `json:"schedule_date"` // RFC3339
	Value             *float64 `json:"value"`
	GroupID           string   `json:"group_id"`
	IsCompleted       bool     `json:"is_completed"`
	NotificationEmail bool     `json:"notification_email"`
	NotificationPush  *bool    `json:"notification_push"` // Defaults to true
}

func (req TaskRequest) toTask(userID string) (tasks.Task, error) {
	task := tasks.Task{
		UserID:            userID,
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		TaskType:          req.TaskType,
		Value:             req.Value,
		GroupID:           req.GroupID,
		IsCompleted:       req.IsCompleted,
		NotificationEmail: req.NotificationEmail,
		NotificationPush:  true,
	}
	if req.NotificationPush != nil {
		task.NotificationPush = *req.NotificationPush
	}
	if req.ScheduleDate != "" {
		date, err := time.Parse(time.RFC3339, req.ScheduleDate)
		if err != nil {
			return task, errors.New("schedule_date must be an RFC3339 timestamp")
		}
		task.ScheduleDate = date.UTC()
	}
	return task, task.Validate()
}

// HandleListTasks returns the caller's tasks (?include_completed=true to include done ones)
func (h *Handler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	includeCompleted, _ := strconv.ParseBool(r.URL.Query().Get("include_completed"))

	list, err := h.repo.ListByUser(r.Context(), request.UserID(r), includeCompleted)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	response.Data(w, h.log, http.StatusOK, list)
}

// HandleCreateTask schedules a task
func (h *Handler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := req.toTask(request.UserID(r))
	if err != nil {
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), &task); err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusCreated, task)
}

// HandleGetTask returns one task
func (h *Handler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.repo.GetByID(r.Context(), request.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, task)
}

// HandleUpdateTask replaces a task's editable fields
func (h *Handler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := req.toTask(request.UserID(r))
	if err != nil {
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	task.ID = chi.URLParam(r, "id")
	if err := h.repo.Update(r.Context(), &task); err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, task)
}

// HandleCompleteTask marks a task done
func (h *Handler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.repo.GetByID(r.Context(), request.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	task.IsCompleted = true
	if err := h.repo.Update(r.Context(), task); err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, task)
}

// HandleDeleteTask removes a task
func (h *Handler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), request.UserID(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCheckReminders runs a reminder pass immediately
func (h *Handler) HandleCheckReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.reminders.Check(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		response.Error(w, h.log, http.StatusNotFound, err.Error())
	case errors.Is(err, tasks.ErrInvalidTask):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Task request failed")
		response.Error(w, h.log, http.StatusInternalServerError, "Internal server error")
	}
}
