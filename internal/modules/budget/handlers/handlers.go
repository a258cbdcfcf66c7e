// Package handlers provides HTTP handlers for the household budget.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/famfin/internal/modules/budget"
	"github.com/aristath/famfin/internal/server/request"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MaxImportRows bounds a single import request
const MaxImportRows = 5000

// Handler handles budget HTTP requests
type Handler struct {
	service *budget.Service
	log     zerolog.Logger
}

// NewHandler creates a new budget handler
func NewHandler(service *budget.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "budget").Logger(),
	}
}

// EntryRequest is the body of entry create and update requests
type EntryRequest struct {
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"` // YYYY-MM-DD
	GroupID     string  `json:"group_id"`
	Amount      float64 `json:"amount"`
}

func (req EntryRequest) toEntry() budget.Entry {
	return budget.Entry{
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
		GroupID:     req.GroupID,
		Amount:      req.Amount,
	}
}

// ImportRequest is the body of a bulk import
type ImportRequest struct {
	Entries []EntryRequest `json:"entries"`
}

func filterFrom(r *http.Request) budget.Filter {
	q := r.URL.Query()
	return budget.Filter{
		From:     q.Get("from"),
		To:       q.Get("to"),
		GroupID:  q.Get("group_id"),
		Category: q.Get("category"),
		Type:     q.Get("type"),
	}
}

// HandleListEntries returns the entries visible to the caller
// (?from, to, group_id, category, type)
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), request.UserID(r), filterFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, entries)
}

// HandleCreateEntry records an income or expense
func (h *Handler) HandleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry := req.toEntry()
	if err := h.service.Create(r.Context(), request.UserID(r), &entry); err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusCreated, entry)
}

// HandleImportEntries records a batch of entries, skipping invalid rows
func (h *Handler) HandleImportEntries(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		response.Error(w, h.log, http.StatusBadRequest, "No entries to import")
		return
	}
	if len(req.Entries) > MaxImportRows {
		response.Error(w, h.log, http.StatusBadRequest, "Too many entries, the limit is "+strconv.Itoa(MaxImportRows))
		return
	}

	entries := make([]budget.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = e.toEntry()
	}
	result, err := h.service.Import(r.Context(), request.UserID(r), entries)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, result)
}

// HandleGetEntry returns a single entry
func (h *Handler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), request.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, entry)
}

// HandleUpdateEntry replaces an entry
func (h *Handler) HandleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry := req.toEntry()
	entry.ID = chi.URLParam(r, "id")
	if err := h.service.Update(r.Context(), request.UserID(r), &entry); err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, entry)
}

// HandleDeleteEntry removes an entry
func (h *Handler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), request.UserID(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReport summarizes the visible entries (?month_start_day=1..28 plus the list filters)
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	startDay := budget.DefaultMonthStartDay
	if raw := r.URL.Query().Get("month_start_day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 1 || day > budget.MaxMonthStartDay {
			response.Error(w, h.log, http.StatusBadRequest, "month_start_day must be between 1 and 28")
			return
		}
		startDay = day
	}

	report, err := h.service.Report(r.Context(), request.UserID(r), filterFrom(r), startDay)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, report)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, budget.ErrNotFound):
		response.Error(w, h.log, http.StatusNotFound, err.Error())
	case errors.Is(err, budget.ErrInvalidEntry):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, budget.ErrForbidden), errors.Is(err, budget.ErrNotMember):
		response.Error(w, h.log, http.StatusForbidden, err.Error())
	default:
		h.log.Error().Err(err).Msg("Budget request failed")
		response.Error(w, h.log, http.StatusInternalServerError, "Internal server error")
	}
}
