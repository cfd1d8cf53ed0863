package handlers

import (
	"fmt"
	"net/http"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/go-chi/chi"
)

func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	rooms, err := h.rooms.ListRooms(r.Context(), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "rooms", Code: http.StatusOK, Data: rooms})
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRoomInput
	if err := decodeBody(r, &in); err != nil {
		h.ErrorResponse(w, r, err)
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), in)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "room created", Code: http.StatusCreated, Data: room})
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	detail, err := h.rooms.GetRoom(r.Context(), chi.URLParam(r, "code"), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "room", Code: http.StatusOK, Data: detail})
}

func (h *Handler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	res, err := h.rooms.Join(r.Context(), chi.URLParam(r, "code"), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "joined", Code: http.StatusOK, Data: res})
}

type markRequest struct {
	Position *int  `json:"position"`
	Marked   *bool `json:"marked"`
}

func (h *Handler) MarkHandler(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := decodeBody(r, &req); err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	if req.Position == nil || req.Marked == nil {
		h.ErrorResponse(w, r, fmt.Errorf("%w: position and marked are required", bingo.ErrValidation))
		return
	}

	user := CurrentUser(r.Context())
	cell, err := h.rooms.Mark(r.Context(), chi.URLParam(r, "code"), user.UserId, *req.Position, *req.Marked)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "cell updated", Code: http.StatusOK, Data: cell})
}

func (h *Handler) DrawHandler(w http.ResponseWriter, r *http.Request) {
	draw, err := h.rooms.Draw(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "number drawn", Code: http.StatusOK, Data: draw})
}

func (h *Handler) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	winner, err := h.rooms.Claim(r.Context(), chi.URLParam(r, "code"), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "bingo", Code: http.StatusOK, Data: winner})
}

func (h *Handler) CloseHandler(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Close(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "room closed", Code: http.StatusOK, Data: room})
}
