// Package handlers provides HTTP handlers for family groups.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/famfin/internal/modules/groups"
	"github.com/aristath/famfin/internal/server/request"
	"github.com/aristath/famfin/internal/server/response"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles group HTTP requests
type Handler struct {
	service *groups.Service
	log     zerolog.Logger
}

// NewHandler creates a new groups handler
func NewHandler(service *groups.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "groups").Logger(),
	}
}

// GroupRequest is the body of create and rename requests
type GroupRequest struct {
	Name string `json:"name"`
}

// JoinRequest is the body of a join request
type JoinRequest struct {
	JoinCode string `json:"join_code"`
}

// RoleRequest is the body of a role change
type RoleRequest struct {
	Role string `json:"role"`
}

// HandleListGroups returns the caller's groups
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), request.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, list)
}

// HandleCreateGroup creates a group owned by the caller
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.service.Create(r.Context(), request.UserID(r), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusCreated, group)
}

// HandleJoinGroup adds the caller to the group with the given join code
func (h *Handler) HandleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.service.Join(r.Context(), request.UserID(r), req.JoinCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, group)
}

// HandleGetGroup returns one of the caller's groups
func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.Get(r.Context(), request.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, group)
}

// HandleRenameGroup renames a group (owner only)
func (h *Handler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	group, err := h.service.Rename(r.Context(), request.UserID(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, group)
}

// HandleDeleteGroup deletes a group (owner only)
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), request.UserID(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMembers returns a group's members
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.Members(r.Context(), request.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, members)
}

// HandleRemoveMember removes a member, or the caller when leaving
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(r.Context(), request.UserID(r), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateRole changes a member's role (owner only)
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	groupID := chi.URLParam(r, "id")
	if err := h.service.UpdateRole(r.Context(), request.UserID(r), groupID, chi.URLParam(r, "userID"), req.Role); err != nil {
		h.writeError(w, err)
		return
	}

	members, err := h.service.Members(r.Context(), request.UserID(r), groupID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Data(w, h.log, http.StatusOK, members)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, groups.ErrNotFound), errors.Is(err, groups.ErrMemberNotFound), errors.Is(err, groups.ErrInvalidJoinCode):
		response.Error(w, h.log, http.StatusNotFound, err.Error())
	case errors.Is(err, groups.ErrForbidden):
		response.Error(w, h.log, http.StatusForbidden, err.Error())
	case errors.Is(err, groups.ErrInvalidGroup), errors.Is(err, groups.ErrInvalidRole):
		response.Error(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, groups.ErrOwnerCannotLeave):
		response.Error(w, h.log, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Group request failed")
		response.Error(w, h.log, http.StatusInternalServerError, "Internal server error")
	}
}
