package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/creatorhub/sessiond/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// SessionReader exposes the current user of the session
type SessionReader interface {
	CurrentUser() (*model.User, bool)
}

// RequireSession rejects requests while no user is logged in and attaches
// the current user to the request context.
func RequireSession(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := sessions.CurrentUser()
			if !ok || user == nil {
				respondWithError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the user attached by RequireSession
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
