// Package handlers provides HTTP handlers for dividend summaries.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/famfin/internal/modules/dividends"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/aristath/famfin/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles dividend HTTP requests
type Handler struct {
	service *dividends.Service
	log     zerolog.Logger
}

// NewHandler creates a new dividends handler
func NewHandler(service *dividends.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "dividends").Logger(),
	}
}

func parseMonths(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("months")
	if raw == "" {
		return dividends.DefaultMonths, true
	}
	months, err := strconv.Atoi(raw)
	if err != nil || months <= 0 || months > 120 {
		return 0, false
	}
	return months, true
}

// HandleGetSummary returns the dividend summary of one symbol (?months=, default 12)
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	months, ok := parseMonths(r)
	if !ok {
		response.Error(w, h.log, http.StatusBadRequest, "months must be an integer between 1 and 120")
		return
	}

	summary := h.service.Summary(r.Context(), chi.URLParam(r, "symbol"), months)
	response.Data(w, h.log, http.StatusOK, summary)
}

// HandleGetSummaries returns summaries for ?symbols=A,B
func (h *Handler) HandleGetSummaries(w http.ResponseWriter, r *http.Request) {
	symbols := utils.ParseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		response.Error(w, h.log, http.StatusBadRequest, "symbols parameter is required")
		return
	}
	months, ok := parseMonths(r)
	if !ok {
		response.Error(w, h.log, http.StatusBadRequest, "months must be an integer between 1 and 120")
		return
	}

	response.Data(w, h.log, http.StatusOK, h.service.Summaries(r.Context(), symbols, months))
}

// HandleGetHistory returns raw dividend events between ?from= and ?to= (YYYY-MM-DD).
// Defaults to the last year.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(-1, 0, 0)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			response.Error(w, h.log, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			response.Error(w, h.log, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}
	if to.Before(from) {
		response.Error(w, h.log, http.StatusBadRequest, "from must not be after to")
		return
	}

	events, err := h.service.History(r.Context(), chi.URLParam(r, "symbol"), from, to)
	if err != nil {
		response.Failure(w, h.log, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, events)
}
