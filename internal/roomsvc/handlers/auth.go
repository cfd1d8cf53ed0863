package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type ctxKey struct{}

// InitAuth sets the HS256 key tokens are verified with.
func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}

func (h *Handler) TokenAuth() *jwtauth.JWTAuth {
	return h.tokenAuth
}

// Identity turns the verified token into a synced user on the request
// context. The token's sub claim is the numeric user id.
func (h *Handler) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			h.ErrorResponse(w, r, errUnauthorized)
			return
		}

		userID, err := strconv.ParseInt(token.Subject(), 10, 64)
		if err != nil || userID <= 0 {
			h.ErrorResponse(w, r, fmt.Errorf("%w: token subject %q is not a user id", errUnauthorized, token.Subject()))
			return
		}

		userInfo := models.User{
			UserId: userID,
			Name:   stringClaim(claims, "name"),
			Email:  stringClaim(claims, "email"),
			Role:   models.RolePlayer,
		}
		if role := stringClaim(claims, "role"); role == string(models.RoleAdmin) {
			userInfo.Role = models.RoleAdmin
		}

		user, err := h.rooms.SyncUser(r.Context(), userInfo)
		if err != nil {
			log.Warnf("identity sync for user %d: %v", userID, err)
			h.ErrorResponse(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

// AdminOnly rejects callers whose role is not ADMIN.
func (h *Handler) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil || user.Role != models.RoleAdmin {
			h.ErrorResponse(w, r, fmt.Errorf("%w: admin role required", errForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKey{}).(*models.User)
	return u
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}
