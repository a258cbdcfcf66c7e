// Package handlers provides HTTP handlers for quotes and price history.
package handlers

import (
	"errors"
	"net/http"

	"github.com/aristath/famfin/internal/modules/market"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/aristath/famfin/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxSymbolsPerRequest bounds a single ?symbols= lookup
const maxSymbolsPerRequest = 50

// Handler handles market data HTTP requests
type Handler struct {
	service *market.QuoteService
	log     zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(service *market.QuoteService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// HandleGetQuotes returns quotes for ?symbols=A,B,C. Failed symbols are listed
// under "errors"; the request only fails when every symbol failed.
func (h *Handler) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := utils.ParseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		response.Error(w, h.log, http.StatusBadRequest, "symbols parameter is required")
		return
	}
	if len(symbols) > maxSymbolsPerRequest {
		response.Error(w, h.log, http.StatusBadRequest, "too many symbols")
		return
	}

	result := h.service.GetQuotes(r.Context(), symbols)
	if len(result.Quotes) == 0 {
		response.Failure(w, h.log, result.FirstError())
		return
	}

	response.Data(w, h.log, http.StatusOK, result)
}

// HandleGetQuote returns the quote of a single symbol
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, quote)
}

// HandleGetHistory returns daily bars for a symbol over ?period= (default 1mo)
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = market.DefaultHistoryPeriod
	}

	points, err := h.service.History(r.Context(), symbol, period)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"period": period,
		"points": points,
	})
}

// HandleSearch returns tickers matching ?q=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	matches, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": matches,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrSymbolRequired),
		errors.Is(err, market.ErrInvalidPeriod),
		errors.Is(err, market.ErrQueryTooShort):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrSearchUnavailable):
		response.Error(w, h.log, http.StatusServiceUnavailable, err.Error())
	default:
		response.Failure(w, h.log, err)
	}
}
