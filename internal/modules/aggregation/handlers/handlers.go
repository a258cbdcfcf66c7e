// Package handlers provides HTTP handlers for open-banking aggregation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/modules/aggregation"
	"github.com/aristath/famfin/internal/server/request"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/aristath/famfin/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles aggregation HTTP requests
type Handler struct {
	service *aggregation.Service
	log     zerolog.Logger
}

// NewHandler creates a new aggregation handler
func NewHandler(service *aggregation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "aggregation").Logger(),
	}
}

// HandleCreateConnectToken returns a token for the connect widget
func (h *Handler) HandleCreateConnectToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.ConnectToken(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, map[string]string{"accessToken": token})
}

// ItemRequest is the body sent after the connect widget links an item
type ItemRequest struct {
	ItemID          string `json:"item_id"`
	InstitutionName string `json:"institution_name"`
}

// HandleListItems returns the caller's linked items
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.UserItems(r.Context(), request.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, items)
}

// HandleRegisterItem links an item to the caller
func (h *Handler) HandleRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := request.UserID(r)
	if err := h.service.RegisterItem(r.Context(), userID, req.ItemID, req.InstitutionName); err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.service.UserItems(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusCreated, items)
}

// authorized writes a 404 and returns false unless the caller linked the item
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if err := h.service.Authorize(r.Context(), request.UserID(r), chi.URLParam(r, "itemID")); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

// HandleGetAccounts returns an item's accounts
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	accounts, err := h.service.Accounts(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, accounts)
}

// HandleGetInvestments returns an item's investment portfolio
func (h *Handler) HandleGetInvestments(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	portfolio, err := h.service.Portfolio(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, portfolio)
}

// HandleGetPortfolios returns portfolios for ?items=a,b, or for all of the
// caller's items, with per-item errors
func (h *Handler) HandleGetPortfolios(w http.ResponseWriter, r *http.Request) {
	items := utils.ParseCSV(r.URL.Query().Get("items"))

	portfolios, failures, err := h.service.UserPortfolios(r.Context(), request.UserID(r), items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(portfolios) == 0 {
		for _, id := range items {
			if fe, ok := failures[id]; ok {
				h.writeError(w, fe)
				return
			}
		}
	}

	response.Data(w, h.log, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
		"errors":     failures,
	})
}

// HandleDeleteItem disconnects one of the caller's items
func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUserItem(r.Context(), request.UserID(r), chi.URLParam(r, "itemID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pluggy.ErrNotConfigured):
		response.Error(w, h.log, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, pluggy.ErrItemIDRequired):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, aggregation.ErrItemNotFound):
		response.Error(w, h.log, http.StatusNotFound, err.Error())
	default:
		response.Failure(w, h.log, err)
	}
}
