package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/auth"
	"github.com/creatorhub/sessiond/internal/model"
)

// SessionHandler exposes the session manager
type SessionHandler struct {
	manager  *auth.Manager
	feed     *auth.Feed
	realtime *auth.ConnectionTracker
}

// NewSessionHandler creates a new session handler. feed and realtime may be
// nil when the manager was built with other implementations.
func NewSessionHandler(manager *auth.Manager, feed *auth.Feed, realtime *auth.ConnectionTracker) *SessionHandler {
	return &SessionHandler{manager: manager, feed: feed, realtime: realtime}
}

type sessionResponse struct {
	auth.Snapshot
	Realtime *auth.RealtimeStatus `json:"realtime,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Requires2FA bool                      `json:"requires2FA"`
	TwoFactor   *model.TwoFactorChallenge `json:"twoFactor,omitempty"`
	User        model.Document            `json:"user,omitempty"`
}

type verifyTwoFactorRequest struct {
	Code       string `json:"code"`
	BackupCode string `json:"backupCode"`
}

type userResponse struct {
	User model.Document `json:"user"`
}

// HandleState handles GET /session
func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Snapshot: h.manager.State()}
	if h.realtime != nil {
		st := h.realtime.Status()
		resp.Realtime = &st
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /session/login
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := h.manager.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(w, err, api.MsgLoginFailed)
		return
	}
	if res.RequiresTwoFactor() {
		respondJSON(w, http.StatusOK, loginResponse{Requires2FA: true, TwoFactor: res.Challenge})
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{User: h.manager.State().Document})
}

// HandleVerifyTwoFactor handles POST /session/2fa
func (h *SessionHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.BackupCode = strings.TrimSpace(req.BackupCode)
	if req.Code == "" && req.BackupCode == "" {
		respondWithError(w, http.StatusBadRequest, "code or backupCode is required")
		return
	}

	if _, err := h.manager.VerifyTwoFactor(r.Context(), req.Code, req.BackupCode); err != nil {
		respondErr(w, err, api.MsgTwoFactorFailed)
		return
	}
	respondJSON(w, http.StatusOK, userResponse{User: h.manager.State().Document})
}

// HandleRegister handles POST /session/register. The body is passed to the
// backend as is.
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeJSON(r, &req); err != nil || len(req) == 0 {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.manager.Register(r.Context(), req); err != nil {
		respondErr(w, err, api.MsgRegisterFailed)
		return
	}
	respondJSON(w, http.StatusCreated, userResponse{User: h.manager.State().Document})
}

// HandleLogout handles POST /session/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context()); err != nil {
		respondErr(w, err, api.MsgLogoutFailed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// HandleRefresh handles POST /session/refresh
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Refresh(r.Context()); err != nil {
		respondErr(w, err, api.MsgRefreshFailed)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Snapshot: h.manager.State()})
}

// HandleUpdateUser handles PATCH /session/user
func (h *SessionHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeJSON(r, &req); err != nil || len(req) == 0 {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.manager.UpdateUser(r.Context(), req); err != nil {
		respondErr(w, err, "Could not update profile")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{User: h.manager.State().Document})
}

// HandleNotifications handles GET /session/notifications?after=<id>
func (h *SessionHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondJSON(w, http.StatusOK, []auth.Notification{})
		return
	}
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "after must be a notification id")
			return
		}
		after = n
	}
	respondJSON(w, http.StatusOK, h.feed.Since(after))
}
