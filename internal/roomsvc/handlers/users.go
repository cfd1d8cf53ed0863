package handlers

import "net/http"

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	me, err := h.rooms.GetUser(r.Context(), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "me", Code: http.StatusOK, Data: me})
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	history, err := h.rooms.History(r.Context(), user.UserId)
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "history", Code: http.StatusOK, Data: history})
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.rooms.ListUsers(r.Context())
	if err != nil {
		h.ErrorResponse(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "users", Code: http.StatusOK, Data: users})
}
