package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/cardroom/internal/api/middleware"
	"github.com/mcoot/cardroom/internal/api/request"
	"github.com/mcoot/cardroom/internal/api/response"
	"github.com/mcoot/cardroom/internal/api/sse"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/room"
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	rooms   *room.Controller
	streams *sse.HubManager
}

// NewRoomHandler creates a new room handler. streams may be nil, in which
// case the event stream is unavailable.
func NewRoomHandler(rooms *room.Controller, streams *sse.HubManager) *RoomHandler {
	return &RoomHandler{rooms: rooms, streams: streams}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	views, err := h.rooms.List(r.Context(), model.RoomFilter{Page: page}, middleware.GetIdentity(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomListFromViews(views))
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRoomRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.rooms.CreateRoom(r.Context(), model.RoomSpec{
		Name:          req.Name,
		MaxPlayers:    req.MaxPlayers,
		MaxSpectators: req.MaxSpectators,
		Visibility:    model.Visibility(req.Visibility),
	}, middleware.MustGetIdentity(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.RoomFromView(view))
}

// Get handles GET /api/v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := model.RoomCode(mux.Vars(r)["code"])
	view, err := h.rooms.Get(r.Context(), code, middleware.GetIdentity(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromView(view))
}

// Join handles POST /api/v1/rooms/{code}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinRoomRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		WriteError(w, err)
		return
	}

	code := model.RoomCode(mux.Vars(r)["code"])
	view, err := h.rooms.Join(r.Context(), code, middleware.MustGetIdentity(r.Context()), req.Spectator)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromView(view))
}

// Events handles GET /api/v1/rooms/{code}/events. Anyone who can see the
// room may watch it.
func (h *RoomHandler) Events(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	code := model.RoomCode(mux.Vars(r)["code"])
	view, err := h.rooms.Get(r.Context(), code, identity)
	if err != nil {
		WriteError(w, err)
		return
	}
	if h.streams == nil {
		WriteError(w, model.ErrNotFound)
		return
	}
	sse.ServeSSE(w, r, h.streams, view.Room.Code, identity.ID)
}
