// Package handlers provides HTTP handlers for manually entered investments.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/modules/investments"
	"github.com/aristath/famfin/internal/modules/positions"
	"github.com/aristath/famfin/internal/server/request"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles investment HTTP requests
type Handler struct {
	service *investments.Service
	log     zerolog.Logger
}

// NewHandler creates a new investments handler
func NewHandler(service *investments.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "investments").Logger(),
	}
}

// CreateTransactionRequest is the body of POST /investments/transactions.
// "symbol" is accepted as an alias of "ticker".
type CreateTransactionRequest struct {
	Ticker          string   `json:"ticker"`
	Symbol          string   `json:"symbol"`
	TransactionType string   `json:"transaction_type"`
	Quantity        *float64 `json:"quantity"`
	Price           *float64 `json:"price"`
	Fees            float64  `json:"fees"`
	TransactionDate string   `json:"transaction_date"`
	AssetName       string   `json:"asset_name"`
	AssetType       string   `json:"asset_type"`
	Notes           string   `json:"notes"`
}

// toTransaction checks required fields and converts the request
func (req CreateTransactionRequest) toTransaction() (domain.Transaction, []string, error) {
	ticker := req.Ticker
	if ticker == "" {
		ticker = req.Symbol
	}

	var missing []string
	if strings.TrimSpace(ticker) == "" {
		missing = append(missing, "ticker")
	}
	if req.Quantity == nil {
		missing = append(missing, "quantity")
	}
	if req.Price == nil {
		missing = append(missing, "price")
	}
	if req.TransactionType == "" {
		missing = append(missing, "transaction_type")
	}
	if req.TransactionDate == "" {
		missing = append(missing, "transaction_date")
	}
	if len(missing) > 0 {
		return domain.Transaction{}, missing, nil
	}

	txType, err := domain.ParseTransactionType(req.TransactionType)
	if err != nil {
		return domain.Transaction{}, nil, err
	}
	date, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		return domain.Transaction{}, nil, errors.New("transaction_date must be YYYY-MM-DD")
	}

	return domain.Transaction{
		Ticker:    ticker,
		Type:      txType,
		Quantity:  *req.Quantity,
		Price:     *req.Price,
		Fees:      req.Fees,
		Date:      date,
		AssetName: req.AssetName,
		AssetType: req.AssetType,
		Notes:     req.Notes,
	}, nil, nil
}

// HandleCreateTransaction records a trade
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, missing, err := req.toTransaction()
	if len(missing) > 0 {
		response.Error(w, h.log, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}
	if err != nil {
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.AddTransaction(r.Context(), request.UserID(r), tx)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusCreated, created)
}

// HandleListTransactions returns the caller's transactions
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context(), request.UserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	response.Data(w, h.log, http.StatusOK, txs)
}

// HandleDeleteTransaction removes a transaction
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteTransaction(r.Context(), request.UserID(r), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPositions returns the caller's open positions at cost
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	open, err := h.service.Positions(r.Context(), request.UserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, open)
}

// HandleGetSummary returns positions valued at live prices with portfolio totals
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.PortfolioSummary(r.Context(), request.UserID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Data(w, h.log, http.StatusOK, summary)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, positions.ErrInvalidTransaction):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, positions.ErrOversell):
		response.Error(w, h.log, http.StatusConflict, err.Error())
	case errors.Is(err, investments.ErrNotFound):
		response.Error(w, h.log, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Investment request failed")
		response.Error(w, h.log, http.StatusInternalServerError, "Internal server error")
	}
}
