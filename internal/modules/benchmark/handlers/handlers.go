// Package handlers provides HTTP handlers for benchmark series.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/aristath/famfin/internal/modules/benchmark"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/rs/zerolog"
)

// Handler handles benchmark HTTP requests
type Handler struct {
	service *benchmark.Service
	log     zerolog.Logger
}

// NewHandler creates a new benchmark handler
func NewHandler(service *benchmark.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "benchmark").Logger(),
	}
}

// HandleGetCDI returns the accumulated CDI over ?days= observations (default 5 years)
func (h *Handler) HandleGetCDI(w http.ResponseWriter, r *http.Request) {
	days := benchmark.DefaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > benchmark.MaxDays {
			response.Error(w, h.log, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(benchmark.MaxDays))
			return
		}
		days = parsed
	}

	series, err := h.service.CDIHistory(r.Context(), days)
	if err != nil {
		response.Failure(w, h.log, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"timestamps":        series.Timestamps,
		"prices":            series.Prices,
		"cumulative_return": series.CumulativeReturn(),
	})
}
