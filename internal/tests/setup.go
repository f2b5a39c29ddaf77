package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/auth"
	httphandler "github.com/creatorhub/sessiond/internal/http"
	"github.com/creatorhub/sessiond/internal/http/handlers"
	"github.com/creatorhub/sessiond/internal/middleware"
	"github.com/creatorhub/sessiond/internal/storage"
)

// Clock is a settable time source shared by the fake backend and the daemon
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Now().Truncate(time.Second)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type backendUser struct {
	id            string
	password      string
	twoFactorCode string
	backupCode    string
	doc           map[string]any
}

// FakeBackend mimics the platform REST API: HS256 access tokens with an exp
// claim checked against the shared clock, opaque rotating refresh tokens.
type FakeBackend struct {
	Server *httptest.Server

	clock    *Clock
	secret   []byte
	tokenTTL time.Duration

	mu         sync.Mutex
	users      map[string]*backendUser // by email
	refresh    map[string]string       // refresh token -> user id
	revoked    map[string]bool
	failLogout bool
	calls      map[string]int
}

func NewFakeBackend(t *testing.T, clock *Clock) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		clock:    clock,
		secret:   []byte("test-jwt-secret-at-least-32-characters-long"),
		tokenTTL: 15 * time.Minute,
		users:    map[string]*backendUser{},
		refresh:  map[string]string{},
		revoked:  map[string]bool{},
		calls:    map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[r.Method+" "+r.URL.Path]++
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.handleLogin)
		r.Post("/auth/2fa/verify-login", b.handleVerify)
		r.Post("/auth/register", b.handleRegister)
		r.Post("/auth/logout", b.handleLogout)
		r.Post("/auth/refresh-token", b.handleRefresh)
		r.Get("/users/me", b.handleMe)
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base URL
func (b *FakeBackend) URL() string { return b.Server.URL + "/api" }

// AddUser registers an account directly and returns its id
func (b *FakeBackend) AddUser(email, password string, doc map[string]any) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	full := map[string]any{"_id": id, "email": email}
	for k, v := range doc {
		full[k] = v
	}
	b.users[email] = &backendUser{id: id, password: password, doc: full}
	return id
}

// EnableTwoFactor makes logins for email stop at a 2FA challenge
func (b *FakeBackend) EnableTwoFactor(email, code, backupCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[email]
	u.twoFactorCode = code
	u.backupCode = backupCode
}

// SetFailLogout makes POST /auth/logout answer 500
func (b *FakeBackend) SetFailLogout(fail bool) {
	b.mu.Lock()
	b.failLogout = fail
	b.mu.Unlock()
}

// RevokeAll invalidates every issued access and refresh token
func (b *FakeBackend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = map[string]string{}
	b.revoked["*"] = true
}

// Calls returns how often "METHOD /api/path" was requested
func (b *FakeBackend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *FakeBackend) issue(u *backendUser) map[string]any {
	now := b.clock.Now()
	claims := jwt.MapClaims{
		"sub": u.id,
		"iat": now.Unix(),
		"exp": now.Add(b.tokenTTL).Unix(),
		"jti": uuid.NewString(),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	refresh := uuid.NewString()
	b.refresh[refresh] = u.id
	return map[string]any{"token": token, "refreshToken": refresh}
}

func (b *FakeBackend) authenticate(r *http.Request) (*backendUser, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return b.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return nil, err
	}
	if b.revoked["*"] || b.revoked[raw] {
		return nil, errors.New("token revoked")
	}
	for _, u := range b.users {
		if u.id == sub {
			return u, nil
		}
	}
	return nil, errors.New("unknown user")
}

func (b *FakeBackend) userByID(id string) *backendUser {
	for _, u := range b.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[req.Email]
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
		return
	}
	if u.twoFactorCode != "" {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"requires2FA": true, "userId": u.id}})
		return
	}
	resp := b.issue(u)
	resp["data"] = map[string]any{"user": u.doc}
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"userId"`
		Token      string `json:"token"`
		BackupCode string `json:"backupCode"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.userByID(req.UserID)
	if u == nil || (req.Token != u.twoFactorCode && (req.BackupCode == "" || req.BackupCode != u.backupCode)) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid two-factor code"})
		return
	}
	resp := b.issue(u)
	resp["data"] = map[string]any{"user": u.doc}
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	email, _ := req["email"].(string)
	password, _ := req["password"].(string)
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Email and password are required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "Email already registered"})
		return
	}
	delete(req, "password")
	id := uuid.NewString()
	req["_id"] = id
	req["role"] = "user"
	u := &backendUser{id: id, password: password, doc: req}
	b.users[email] = u

	resp := b.issue(u)
	resp["data"] = map[string]any{"user": u.doc}
	writeJSON(w, http.StatusCreated, resp)
}

func (b *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLogout {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal server error"})
		return
	}
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.revoked[raw] = true
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.refresh[req.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
		return
	}
	delete(b.refresh, req.RefreshToken)
	writeJSON(w, http.StatusOK, b.issue(b.userByID(id)))
}

func (b *FakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, err := b.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Not authorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": u.doc}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Daemon is the local session service wired the way cmd/api wires it
type Daemon struct {
	Server  *httptest.Server
	Manager *auth.Manager
	Feed    *auth.Feed
	Store   storage.Store
}

func NewDaemon(t *testing.T, backend *FakeBackend, store storage.Store, clock *Clock) *Daemon {
	t.Helper()
	client := api.NewHTTPClient(api.HTTPClientConfig{BaseURL: backend.URL(), Timeout: 5 * time.Second}, nil)
	feed := auth.NewFeed(50)
	tracker := auth.NewConnectionTracker()
	opts := auth.DefaultOptions()
	opts.Now = clock.Now
	manager := auth.NewManager(client, store, feed, tracker, opts)

	router := httphandler.NewRouter(
		handlers.NewSessionHandler(manager, feed, tracker),
		handlers.NewAchievementHandler(),
		manager,
		middleware.NewRateLimiter(time.Minute, 1000),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Daemon{Server: srv, Manager: manager, Feed: feed, Store: store}
}

// Do sends body as JSON and returns the status, headers and raw body
func (d *Daemon) Do(t *testing.T, method, path string, body any) (int, http.Header, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, d.Server.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := d.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, raw
}

// DoJSON is Do plus decoding of the response into out
func (d *Daemon) DoJSON(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	status, _, raw := d.Do(t, method, path, body)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return status
}
