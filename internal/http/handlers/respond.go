package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/auth"
	"github.com/creatorhub/sessiond/internal/model"
	"github.com/creatorhub/sessiond/internal/ratelimit"
)

// respondJSON sends v with the given status
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondErr maps a session error to a status code and a user-readable message
func respondErr(w http.ResponseWriter, err error, fallback string) {
	var limitErr *ratelimit.LimitError
	var apiErr *api.Error
	var urlErr *url.Error

	switch {
	case errors.As(err, &limitErr):
		secs := limitErr.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		respondWithError(w, http.StatusTooManyRequests, "Please wait "+strconv.Itoa(secs)+" seconds before trying again")
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		respondWithError(w, apiErr.StatusCode, msg)
	case errors.Is(err, auth.ErrNotAuthenticated):
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, auth.ErrNoTwoFactorChallenge):
		respondWithError(w, http.StatusConflict, "no two-factor verification in progress")
	case errors.Is(err, auth.ErrNoRefreshToken):
		respondWithError(w, http.StatusConflict, "no refresh token")
	case errors.Is(err, auth.ErrInvalidAuthResponse), errors.As(err, &urlErr):
		respondWithError(w, http.StatusBadGateway, fallback)
	case errors.Is(err, model.ErrInvalidUser):
		respondWithError(w, http.StatusBadRequest, "invalid user fields")
	default:
		log.Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
