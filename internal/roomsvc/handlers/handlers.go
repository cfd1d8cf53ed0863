package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	rooms     *service.RoomService
	port      string
}

func NewHandler(rooms *service.RoomService, port string) *Handler {
	return &Handler{rooms: rooms, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

func statusFor(c bingo.ErrorCategory) int {
	switch c {
	case bingo.CategoryNotFound:
		return http.StatusNotFound
	case bingo.CategoryConflict, bingo.CategoryExhausted:
		return http.StatusConflict
	case bingo.CategoryInvalidClaim:
		return http.StatusUnprocessableEntity
	case bingo.CategoryValidation:
		return http.StatusBadRequest
	case bingo.CategoryStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes err with the status its category maps to.
func (h *Handler) ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errUnauthorized):
		h.CreateResponse(w, Response{Message: err.Error(), Code: http.StatusUnauthorized, Error: "unauthorized"})
		return
	case errors.Is(err, errForbidden):
		h.CreateResponse(w, Response{Message: err.Error(), Code: http.StatusForbidden, Error: "forbidden"})
		return
	}

	category := bingo.Category(err)
	code := statusFor(category)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"method": r.Method, "uri": r.RequestURI}).Errorf("request failed: %v", err)
		if category == bingo.CategoryInternal {
			msg = "internal error"
		}
	}

	h.CreateResponse(w, Response{Message: msg, Code: code, Error: string(category)})
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is required", bingo.ErrValidation)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body: %v", bingo.ErrValidation, err)
	}
	return nil
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "room service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}
