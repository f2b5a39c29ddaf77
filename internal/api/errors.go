package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx answer from the backend. Message is user-readable: the
// backend's own message when it sent one, otherwise a per-call default.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsRejected reports whether err is a 4xx answer, i.e. the backend refused
// the credentials or token rather than failing.
func IsRejected(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// IsUnauthorized reports whether err is a 401 or 403 answer
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// errorBody covers the error shapes the backend uses
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func messageFrom(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if m := strings.TrimSpace(eb.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(eb.Error); m != "" {
			return m
		}
	}
	return fallback
}
