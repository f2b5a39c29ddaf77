package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/model"
	"github.com/creatorhub/sessiond/internal/ratelimit"
	"github.com/creatorhub/sessiond/internal/storage"
)

const testSecret = "test-jwt-secret-at-least-32-characters-long"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeClient is an api.Client with canned answers and call counters
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	loginResp    *api.AuthResponse
	loginErr     error
	verifyResp   *api.AuthResponse
	verifyErr    error
	registerResp *api.AuthResponse
	registerErr  error
	logoutErr    error
	meDoc        model.Document
	meErr        error
	refreshPair  *api.TokenPair
	refreshErr   error

	verifyArgs   []string
	logoutToken  string
	meToken      string
	refreshToken string
	registerData map[string]any
}

var _ api.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}}
}

func (f *fakeClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeClient) Login(_ context.Context, _, _ string) (*api.AuthResponse, error) {
	f.record("login")
	return f.loginResp, f.loginErr
}

func (f *fakeClient) VerifyTwoFactor(_ context.Context, userID, code, backupCode string) (*api.AuthResponse, error) {
	f.record("verify")
	f.verifyArgs = []string{userID, code, backupCode}
	return f.verifyResp, f.verifyErr
}

func (f *fakeClient) Register(_ context.Context, userData map[string]any) (*api.AuthResponse, error) {
	f.record("register")
	f.registerData = userData
	return f.registerResp, f.registerErr
}

func (f *fakeClient) Logout(_ context.Context, token string) error {
	f.record("logout")
	f.logoutToken = token
	return f.logoutErr
}

func (f *fakeClient) Me(_ context.Context, token string) (model.Document, error) {
	f.record("me")
	f.meToken = token
	return f.meDoc, f.meErr
}

func (f *fakeClient) Refresh(_ context.Context, refreshToken string) (*api.TokenPair, error) {
	f.record("refresh")
	f.refreshToken = refreshToken
	return f.refreshPair, f.refreshErr
}

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "exp": exp.Unix()})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func userDoc(t *testing.T, raw string) model.Document {
	t.Helper()
	doc, err := model.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func authResponse(t *testing.T, token, refresh, user string) *api.AuthResponse {
	t.Helper()
	return &api.AuthResponse{Token: token, RefreshToken: refresh, Data: api.AuthData{User: userDoc(t, user)}}
}

type harness struct {
	mgr    *Manager
	client *fakeClient
	store  *storage.MemoryStore
	feed   *Feed
	rt     *ConnectionTracker
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		client: newFakeClient(),
		store:  storage.NewMemoryStore(),
		feed:   NewFeed(50),
		rt:     NewConnectionTracker(),
		clock:  &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts := DefaultOptions()
	opts.Now = h.clock.Now
	h.mgr = NewManager(h.client, h.store, h.feed, h.rt, opts)
	return h
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func (h *harness) lastNotification(t *testing.T) Notification {
	t.Helper()
	all := h.feed.Since(0)
	require.NotEmpty(t, all, "expected a notification")
	return all[len(all)-1]
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	token := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	h.client.loginResp = authResponse(t, token, "refresh-1", `{"_id":"u1","username":"ada","role":"creator"}`)
	res, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	require.False(t, res.RequiresTwoFactor())
	return token
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)

	snap := h.mgr.State()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ada", snap.User.Username)
	assert.Equal(t, model.RoleCreator, snap.User.Role)

	v, ok := h.stored(t, storage.KeyToken)
	assert.True(t, ok)
	assert.Equal(t, token, v)
	v, _ = h.stored(t, storage.KeyRefreshToken)
	assert.Equal(t, "refresh-1", v)
	v, _ = h.stored(t, storage.KeyUser)
	assert.JSONEq(t, `{"_id":"u1","username":"ada","role":"creator"}`, v)

	assert.Equal(t, "Login successful", h.lastNotification(t).Message)
	assert.True(t, h.rt.Status().Connected)
	assert.Equal(t, "u1", h.rt.Status().Subject)
}

func TestLogin_RateLimitedWithoutNetworkCall(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.clock.Advance(2 * time.Second)
	_, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ratelimit.ErrLimited))
	assert.Equal(t, 1, h.client.count("login"), "a limited login must not reach the backend")

	n := h.lastNotification(t)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "Please wait 3 seconds before trying again", n.Message)

	h.clock.Advance(3 * time.Second)
	_, err = h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 2, h.client.count("login"))
}

func TestLogin_FailureCountsAsAttempt(t *testing.T) {
	h := newHarness(t)
	h.client.loginErr = &api.Error{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}

	_, err := h.mgr.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", h.lastNotification(t).Message)
	assert.Equal(t, StateAnonymous, h.mgr.State().State)
	_, ok := h.stored(t, storage.KeyToken)
	assert.False(t, ok)

	_, err = h.mgr.Login(context.Background(), "ada@example.com", "pw")
	assert.True(t, errors.Is(err, ratelimit.ErrLimited))
	assert.Equal(t, 1, h.client.count("login"))
}

func TestLogin_NetworkErrorUsesFallbackMessage(t *testing.T) {
	h := newHarness(t)
	h.client.loginErr = errors.New("dial tcp: connection refused")

	_, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)
	assert.Equal(t, api.MsgLoginFailed, h.lastNotification(t).Message)
}

func TestLogin_MissingTokenIsInvalid(t *testing.T) {
	h := newHarness(t)
	h.client.loginResp = &api.AuthResponse{Data: api.AuthData{User: userDoc(t, `{"_id":"u1"}`)}}

	_, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidAuthResponse)
	assert.False(t, h.mgr.IsAuthenticated())
}

func TestLogin_TwoFactorChallenge(t *testing.T) {
	h := newHarness(t)
	h.client.loginResp = &api.AuthResponse{Data: api.AuthData{Requires2FA: true, UserID: "u1"}}

	res, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	require.True(t, res.RequiresTwoFactor())
	assert.Equal(t, "u1", res.Challenge.UserID)
	assert.True(t, res.Challenge.Pending)

	snap := h.mgr.State()
	assert.Equal(t, StatePendingTwoFactor, snap.State)
	assert.False(t, snap.IsAuthenticated)
	_, ok := h.stored(t, storage.KeyToken)
	assert.False(t, ok, "no token may be stored before the second factor")
	assert.False(t, h.rt.Status().Connected)

	token := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	h.client.verifyResp = authResponse(t, token, "refresh-2", `{"_id":"u1","username":"ada"}`)
	user, err := h.mgr.VerifyTwoFactor(context.Background(), "123456", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, []string{"u1", "123456", ""}, h.client.verifyArgs)

	snap = h.mgr.State()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Nil(t, snap.TwoFactor)
	v, _ := h.stored(t, storage.KeyToken)
	assert.Equal(t, token, v)
}

func TestVerifyTwoFactor_WithoutChallenge(t *testing.T) {
	h := newHarness(t)

	_, err := h.mgr.VerifyTwoFactor(context.Background(), "123456", "")
	assert.ErrorIs(t, err, ErrNoTwoFactorChallenge)
	assert.Equal(t, 0, h.client.count("verify"))
}

func TestVerifyTwoFactor_FailureKeepsChallenge(t *testing.T) {
	h := newHarness(t)
	h.client.loginResp = &api.AuthResponse{Data: api.AuthData{Requires2FA: true, UserID: "u1"}}
	_, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	h.client.verifyErr = &api.Error{StatusCode: http.StatusBadRequest, Message: "Invalid code"}
	_, err = h.mgr.VerifyTwoFactor(context.Background(), "000000", "")
	require.Error(t, err)
	assert.Equal(t, "Invalid code", h.lastNotification(t).Message)

	snap := h.mgr.State()
	assert.Equal(t, StatePendingTwoFactor, snap.State)
	require.NotNil(t, snap.TwoFactor)
	assert.Equal(t, "u1", snap.TwoFactor.UserID)
}

func TestRegister_RateLimit(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "u2", h.clock.Now().Add(time.Hour))
	h.client.registerResp = authResponse(t, token, "", `{"_id":"u2","username":"bob"}`)

	data := map[string]any{"username": "bob", "email": "bob@example.com", "password": "pw"}
	user, err := h.mgr.Register(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, data, h.client.registerData)
	assert.Equal(t, "Registration successful", h.lastNotification(t).Message)
	_, ok := h.stored(t, storage.KeyRefreshToken)
	assert.False(t, ok)

	h.clock.Advance(10 * time.Second)
	_, err = h.mgr.Register(context.Background(), data)
	var limitErr *ratelimit.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 20, limitErr.RetryAfterSeconds())
	assert.Equal(t, 1, h.client.count("register"))

	h.clock.Advance(20 * time.Second)
	_, err = h.mgr.Register(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, h.client.count("register"))
}

func TestLogout_ServerFailureStillClears(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)
	h.client.logoutErr = errors.New("connection reset")

	require.NoError(t, h.mgr.Logout(context.Background()))
	assert.Equal(t, token, h.client.logoutToken)

	snap := h.mgr.State()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	for _, key := range []string{storage.KeyToken, storage.KeyRefreshToken, storage.KeyUser} {
		_, ok := h.stored(t, key)
		assert.False(t, ok, "%s must be removed", key)
	}
	assert.False(t, h.rt.Status().Connected)
	assert.Equal(t, "Logged out successfully", h.lastNotification(t).Message)
}

func TestLogout_CancelledContextStillClears(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.client.logoutErr = context.Canceled

	require.NoError(t, h.mgr.Logout(ctx))
	assert.False(t, h.mgr.IsAuthenticated())
	_, ok := h.stored(t, storage.KeyToken)
	assert.False(t, ok)
}

func TestLogout_RateLimitedKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.mgr.Logout(context.Background()))
	h.login(t)

	err := h.mgr.Logout(context.Background())
	assert.True(t, errors.Is(err, ratelimit.ErrLimited))
	assert.True(t, h.mgr.IsAuthenticated())
	assert.Equal(t, 1, h.client.count("logout"))
}

func TestLogout_Anonymous(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.mgr.Logout(context.Background()))
	assert.Equal(t, 0, h.client.count("logout"), "no server call without a token")
	assert.Equal(t, StateAnonymous, h.mgr.State().State)
}

func TestUpdateUser_ShallowMergeKeepsUnknownFields(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	h.client.loginResp = authResponse(t, token, "r",
		`{"_id":"u1","username":"ada","theme":{"dark":true},"settings":{"a":1,"b":2}}`)
	_, err := h.mgr.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	user, err := h.mgr.UpdateUser(context.Background(), map[string]any{
		"username": "ada2",
		"settings": map[string]any{"a": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "ada2", user.Username)

	want := `{"_id":"u1","username":"ada2","theme":{"dark":true},"settings":{"a":3}}`
	v, _ := h.stored(t, storage.KeyUser)
	assert.JSONEq(t, want, v)

	snap := h.mgr.State()
	assert.Equal(t, "ada2", snap.User.Username)
	assert.JSONEq(t, `{"dark":true}`, string(snap.Document["theme"]))
	assert.Equal(t, 0, h.client.count("me"), "updates are local only")
}

func TestUpdateUser_RequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.mgr.UpdateUser(context.Background(), map[string]any{"username": "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, ok := h.stored(t, storage.KeyUser)
	assert.False(t, ok)
}

func TestRestore_NoStoredToken(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.mgr.Restore(context.Background()))
	assert.Equal(t, StateAnonymous, h.mgr.State().State)
	assert.Equal(t, 0, h.client.count("me"))
}

func TestRestore_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	token := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	require.NoError(t, h.store.Set(ctx, storage.KeyToken, token))
	require.NoError(t, h.store.Set(ctx, storage.KeyRefreshToken, "refresh-1"))
	h.client.meDoc = userDoc(t, `{"_id":"u1","username":"ada","isVerified":true}`)

	require.NoError(t, h.mgr.Restore(ctx))
	assert.Equal(t, token, h.client.meToken)
	assert.Equal(t, 0, h.client.count("refresh"), "a fresh token is not refreshed")

	snap := h.mgr.State()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.False(t, snap.Loading)
	assert.True(t, snap.User.IsVerified)
	v, _ := h.stored(t, storage.KeyUser)
	assert.JSONEq(t, `{"_id":"u1","username":"ada","isVerified":true}`, v)
	assert.True(t, h.rt.Status().Connected)
}

func TestRestore_FetchFailureForcesLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, storage.KeyToken, "opaque-token"))
	require.NoError(t, h.store.Set(ctx, storage.KeyUser, `{"_id":"u1"}`))
	h.client.meErr = &api.Error{StatusCode: http.StatusUnauthorized, Message: "jwt expired"}

	err := h.mgr.Restore(ctx)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	snap := h.mgr.State()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.False(t, snap.Loading)
	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		_, ok := h.stored(t, key)
		assert.False(t, ok, "%s must be removed", key)
	}
	n := h.lastNotification(t)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, msgSessionExpired, n.Message)
	assert.Equal(t, 0, h.client.count("logout"), "forced logout does not call the backend")
}

func TestRestore_ForcedLogoutIgnoresRateLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.mgr.Logout(ctx))
	h.login(t)

	h.client.meErr = errors.New("network down")
	require.Error(t, h.mgr.Restore(ctx))
	assert.False(t, h.mgr.IsAuthenticated())
}

func TestRestore_RefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	expired := signToken(t, "u1", h.clock.Now().Add(-time.Hour))
	fresh := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	require.NoError(t, h.store.Set(ctx, storage.KeyToken, expired))
	require.NoError(t, h.store.Set(ctx, storage.KeyRefreshToken, "refresh-1"))
	h.client.refreshPair = &api.TokenPair{Token: fresh, RefreshToken: "refresh-2"}
	h.client.meDoc = userDoc(t, `{"_id":"u1","username":"ada"}`)

	require.NoError(t, h.mgr.Restore(ctx))
	assert.Equal(t, "refresh-1", h.client.refreshToken)
	assert.Equal(t, fresh, h.client.meToken, "the user is fetched with the refreshed token")

	v, _ := h.stored(t, storage.KeyToken)
	assert.Equal(t, fresh, v)
	v, _ = h.stored(t, storage.KeyRefreshToken)
	assert.Equal(t, "refresh-2", v)
}

func TestEnsureFresh_WithinSkew(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.client.refreshPair = &api.TokenPair{Token: signToken(t, "u1", h.clock.Now().Add(2*time.Hour))}

	require.NoError(t, h.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 0, h.client.count("refresh"))

	h.clock.Advance(59*time.Minute + 30*time.Second)
	require.NoError(t, h.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 1, h.client.count("refresh"))

	v, _ := h.stored(t, storage.KeyRefreshToken)
	assert.Equal(t, "refresh-1", v, "an unrotated refresh token is kept")
	assert.True(t, h.rt.Status().Connected)
}

func TestRefresh_RejectedForcesLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.client.refreshErr = &api.Error{StatusCode: http.StatusUnauthorized, Message: "invalid refresh token"}

	err := h.mgr.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, h.mgr.IsAuthenticated())
	_, ok := h.stored(t, storage.KeyRefreshToken)
	assert.False(t, ok)
}

func TestRefresh_NetworkErrorKeepsSession(t *testing.T) {
	h := newHarness(t)
	token := h.login(t)
	h.client.refreshErr = errors.New("timeout")

	require.Error(t, h.mgr.Refresh(context.Background()))
	assert.True(t, h.mgr.IsAuthenticated())
	v, _ := h.stored(t, storage.KeyToken)
	assert.Equal(t, token, v)
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.mgr.Refresh(context.Background()), ErrNoRefreshToken)
	assert.Equal(t, 0, h.client.count("refresh"))
}

func TestState_ReturnsCopies(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	snap := h.mgr.State()
	snap.User.Username = "mallory"
	snap.Document["username"] = []byte(`"mallory"`)

	again := h.mgr.State()
	assert.Equal(t, "ada", again.User.Username)
	assert.JSONEq(t, `"ada"`, string(again.Document["username"]))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"limit", &ratelimit.LimitError{Key: "k", RetryAfter: 1500 * time.Millisecond}, "Please wait 2 seconds before trying again"},
		{"backend message", &api.Error{StatusCode: 400, Message: "Email taken"}, "Email taken"},
		{"wrapped backend message", errors.Join(errors.New("register"), &api.Error{StatusCode: 409, Message: "Email taken"}), "Email taken"},
		{"empty backend message", &api.Error{StatusCode: 500}, "fallback"},
		{"other", errors.New("boom"), "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err, "fallback"))
		})
	}
}

func TestLogin_TwoFactorReplacesHeldSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.clock.Advance(6 * time.Second)

	h.client.loginResp = &api.AuthResponse{Data: api.AuthData{Requires2FA: true, UserID: "u2"}}
	res, err := h.mgr.Login(context.Background(), "grace@example.com", "pw")
	require.NoError(t, err)
	require.True(t, res.RequiresTwoFactor())

	snap := h.mgr.State()
	assert.Equal(t, StatePendingTwoFactor, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	require.NotNil(t, snap.TwoFactor)
	assert.Equal(t, "u2", snap.TwoFactor.UserID)
	for _, key := range []string{storage.KeyToken, storage.KeyRefreshToken, storage.KeyUser} {
		_, ok := h.stored(t, key)
		assert.False(t, ok, "%s of the previous session must be removed", key)
	}
	assert.False(t, h.rt.Status().Connected)
	assert.Equal(t, 0, h.client.count("logout"))
}

func TestLoadStored_MarksVerifyingBeforeRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	found, err := h.mgr.LoadStored(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, h.mgr.State().Loading)

	token := signToken(t, "u1", h.clock.Now().Add(time.Hour))
	require.NoError(t, h.store.Set(ctx, storage.KeyToken, token))
	found, err = h.mgr.LoadStored(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	snap := h.mgr.State()
	assert.Equal(t, StateVerifying, snap.State)
	assert.True(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, 0, h.client.count("me"))

	h.client.meDoc = userDoc(t, `{"_id":"u1","username":"ada"}`)
	require.NoError(t, h.mgr.Restore(ctx))
	snap = h.mgr.State()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.False(t, snap.Loading)
}

func TestRestore_BackendFaultMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, storage.KeyToken, "opaque-token"))
	h.client.meErr = &api.Error{StatusCode: http.StatusBadGateway, Message: "upstream down"}

	require.Error(t, h.mgr.Restore(ctx))
	assert.False(t, h.mgr.IsAuthenticated())
	n := h.lastNotification(t)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, msgSessionUnverified, n.Message)
}

func TestUpdateUser_MistypedFieldRejected(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, err := h.mgr.UpdateUser(context.Background(), map[string]any{"posts": "x"})
	assert.ErrorIs(t, err, model.ErrInvalidUser)

	snap := h.mgr.State()
	assert.Equal(t, "ada", snap.User.Username)
	assert.NotContains(t, snap.Document, "posts")
	v, _ := h.stored(t, storage.KeyUser)
	assert.JSONEq(t, `{"_id":"u1","username":"ada","role":"creator"}`, v)
}
