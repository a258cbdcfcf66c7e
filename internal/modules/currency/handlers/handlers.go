// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/server/response"
)

// RateSource looks up the rate that converts one unit of from into to
type RateSource interface {
	GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error)
}

// SupportedCurrencies are the currencies positions and quotes may be valued in
var SupportedCurrencies = []domain.Currency{
	domain.CurrencyBRL,
	domain.CurrencyUSD,
	domain.CurrencyEUR,
}

// Handler handles currency HTTP requests
type Handler struct {
	rates RateSource
	log   zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(rates RateSource, log zerolog.Logger) *Handler {
	return &Handler{
		rates: rates,
		log:   log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert currency
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

// ConvertResponse is the result of a conversion
type ConvertResponse struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	FromAmount   float64 `json:"from_amount"`
	ToAmount     float64 `json:"to_amount"`
	Rate         float64 `json:"rate"`
}

// HandleGetAvailableCurrencies handles GET /api/currency/available-currencies
func (h *Handler) HandleGetAvailableCurrencies(w http.ResponseWriter, r *http.Request) {
	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"currencies": SupportedCurrencies,
		"count":      len(SupportedCurrencies),
	})
}

// HandleGetRate handles GET /api/currency/rates/{from}/{to}
func (h *Handler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	from, ok := parseCurrency(chi.URLParam(r, "from"))
	to, ok2 := parseCurrency(chi.URLParam(r, "to"))
	if !ok || !ok2 {
		response.Error(w, h.log, http.StatusBadRequest, "from and to must be three-letter currency codes")
		return
	}

	rate, err := h.rates.GetRate(r.Context(), from, to)
	if err != nil {
		h.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Failed to get exchange rate")
		response.Failure(w, h.log, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"from_currency": from,
		"to_currency":   to,
		"rate":          rate,
	})
}

// HandleConvert handles POST /api/currency/convert
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	from, ok := parseCurrency(req.FromCurrency)
	to, ok2 := parseCurrency(req.ToCurrency)
	if !ok || !ok2 {
		response.Error(w, h.log, http.StatusBadRequest, "from_currency and to_currency are required")
		return
	}

	if req.Amount <= 0 {
		response.Error(w, h.log, http.StatusBadRequest, "amount must be greater than 0")
		return
	}

	rate, err := h.rates.GetRate(r.Context(), from, to)
	if err != nil {
		h.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Failed to get exchange rate")
		response.Failure(w, h.log, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, ConvertResponse{
		FromCurrency: from,
		ToCurrency:   to,
		FromAmount:   req.Amount,
		ToAmount:     req.Amount * rate,
		Rate:         rate,
	})
}

func parseCurrency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return "", false
		}
	}
	return s, true
}
