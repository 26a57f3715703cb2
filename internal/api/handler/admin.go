package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/cardroom/internal/api/middleware"
	"github.com/mcoot/cardroom/internal/api/request"
	"github.com/mcoot/cardroom/internal/api/response"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/auth"
	"github.com/mcoot/cardroom/internal/services/room"
)

// AdminHandler handles the admin-only endpoints
type AdminHandler struct {
	authService *auth.Service
	rooms       *room.Controller
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *auth.Service, rooms *room.Controller) *AdminHandler {
	return &AdminHandler{authService: authService, rooms: rooms}
}

// Verify handles GET /api/v1/admin/verify
func (h *AdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.IdentityFromModel(middleware.MustGetIdentity(r.Context())))
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	identities, err := h.authService.ListIdentities(r.Context(), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.IdentityListFromModels(identities))
}

// SetRole handles PATCH /api/v1/admin/users/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req request.SetRoleRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		WriteError(w, NewInvalidRequestError("role must be admin, user or guest"))
		return
	}

	id := model.IdentityID(mux.Vars(r)["id"])
	identity, err := h.authService.SetRole(r.Context(), id, role)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.IdentityFromModel(identity))
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := model.IdentityID(mux.Vars(r)["id"])
	if id == middleware.MustGetIdentity(r.Context()).ID {
		WriteError(w, NewInvalidRequestError("cannot delete yourself"))
		return
	}
	if err := h.authService.DeleteIdentity(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// ListRooms handles GET /api/v1/admin/rooms
func (h *AdminHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	sort, err := model.ParseRoomSort(r.URL.Query().Get("sort"))
	if err != nil {
		WriteError(w, NewInvalidRequestError("sort must be newest, oldest or name"))
		return
	}
	status := model.RoomStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.RoomStatusActive, model.RoomStatusArchived:
	default:
		WriteError(w, NewInvalidRequestError("status must be active or archived"))
		return
	}

	views, err := h.rooms.ListAll(r.Context(), model.AdminRoomFilter{
		Status: status,
		Sort:   sort,
		Page:   page,
	}, middleware.MustGetIdentity(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomListFromViews(views))
}

// ArchiveRoom handles DELETE /api/v1/admin/rooms/{code}
func (h *AdminHandler) ArchiveRoom(w http.ResponseWriter, r *http.Request) {
	code := model.RoomCode(mux.Vars(r)["code"])
	view, err := h.rooms.Archive(r.Context(), code, middleware.MustGetIdentity(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromView(view))
}
