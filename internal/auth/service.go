package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/logger"
	"github.com/creatorhub/sessiond/internal/model"
	"github.com/creatorhub/sessiond/internal/ratelimit"
	"github.com/creatorhub/sessiond/internal/storage"
)

const (
	msgLoginSuccess      = "Login successful"
	msgTwoFactorNeeded   = "Enter your two-factor code to continue"
	msgRegisterSuccess   = "Registration successful"
	msgLogoutSuccess     = "Logged out successfully"
	msgSessionExpired    = "Your session has expired. Please log in again."
	msgSessionUnverified = "Could not verify your session. Please log in again."
	msgNoChallenge       = "No two-factor verification in progress"
)

// Options tunes the manager. Intervals of 0 disable the corresponding limit.
type Options struct {
	LoginInterval    time.Duration
	RegisterInterval time.Duration
	LogoutInterval   time.Duration
	// RefreshSkew refreshes access tokens this long before they expire
	RefreshSkew time.Duration
	Now         func() time.Time
}

// DefaultOptions returns the web client's limits
func DefaultOptions() Options {
	return Options{
		LoginInterval:    5 * time.Second,
		RegisterInterval: 30 * time.Second,
		LogoutInterval:   5 * time.Second,
		RefreshSkew:      time.Minute,
		Now:              time.Now,
	}
}

// Manager owns the authenticated session. Tokens and the user are only
// changed through its methods; everything else reads snapshots.
type Manager struct {
	client   api.Client
	store    storage.Store
	gate     *ratelimit.Gate
	notifier Notifier
	realtime Realtime
	tokens   *TokenInspector
	opts     Options
	log      zerolog.Logger

	// opMu serializes operations so rate-limit checks and state transitions
	// are atomic; mu guards the fields below for readers.
	opMu sync.Mutex
	mu   sync.RWMutex

	state        State
	token        string
	refreshToken string
	user         *model.User
	doc          model.Document
	challenge    *model.TwoFactorChallenge
	loading      bool
}

// NewManager creates a manager in the anonymous state. A nil notifier or
// realtime gets a Feed or ConnectionTracker.
func NewManager(client api.Client, store storage.Store, notifier Notifier, rt Realtime, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = NewFeed(0)
	}
	if rt == nil {
		rt = NewConnectionTracker()
	}
	return &Manager{
		client:   client,
		store:    store,
		gate:     ratelimit.NewGate(ratelimit.NewKVTimestamps(store), opts.Now),
		notifier: notifier,
		realtime: rt,
		tokens:   NewTokenInspector(),
		opts:     opts,
		log:      logger.Component("auth.manager"),
		state:    StateAnonymous,
	}
}

// Login authenticates with email and password. When the backend asks for a
// second factor the result carries the challenge and no tokens are stored.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.gate.Allow(ctx, storage.KeyLastLoginAttempt, m.opts.LoginInterval); err != nil {
		m.notifyFailure(err, api.MsgLoginFailed)
		return nil, err
	}

	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		m.notifyFailure(err, api.MsgLoginFailed)
		return nil, fmt.Errorf("login: %w", err)
	}

	if resp.Data.Requires2FA {
		// a challenge replaces whatever session was held before
		m.mu.RLock()
		held := m.user != nil || m.token != ""
		m.mu.RUnlock()
		if held {
			m.clearSession(ctx, "")
		}

		ch := model.TwoFactorChallenge{UserID: resp.Data.UserID, Pending: true}
		m.mu.Lock()
		m.challenge = &ch
		m.state = StatePendingTwoFactor
		m.mu.Unlock()

		m.log.Info().Str("user_id", ch.UserID).Msg("login requires two-factor verification")
		m.notifier.Success(msgTwoFactorNeeded)
		out := ch
		return &LoginResult{Challenge: &out}, nil
	}

	user, err := m.establish(ctx, resp)
	if err != nil {
		m.notifyFailure(err, api.MsgLoginFailed)
		return nil, fmt.Errorf("login: %w", err)
	}
	m.notifier.Success(msgLoginSuccess)
	return &LoginResult{User: user}, nil
}

// VerifyTwoFactor completes a pending login with a one-time code or a
// backup code. The challenge survives a failed attempt.
func (m *Manager) VerifyTwoFactor(ctx context.Context, code, backupCode string) (*model.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	ch := m.challenge
	m.mu.RUnlock()
	if ch == nil || !ch.Pending {
		m.notifier.Error(msgNoChallenge)
		return nil, ErrNoTwoFactorChallenge
	}

	resp, err := m.client.VerifyTwoFactor(ctx, ch.UserID, code, backupCode)
	if err != nil {
		m.notifyFailure(err, api.MsgTwoFactorFailed)
		return nil, fmt.Errorf("verify two-factor: %w", err)
	}

	user, err := m.establish(ctx, resp)
	if err != nil {
		m.notifyFailure(err, api.MsgTwoFactorFailed)
		return nil, fmt.Errorf("verify two-factor: %w", err)
	}
	m.notifier.Success(msgLoginSuccess)
	return user, nil
}

// Register creates an account and logs it in
func (m *Manager) Register(ctx context.Context, userData map[string]any) (*model.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.gate.Allow(ctx, storage.KeyLastRegisterAttempt, m.opts.RegisterInterval); err != nil {
		m.notifyFailure(err, api.MsgRegisterFailed)
		return nil, err
	}

	resp, err := m.client.Register(ctx, userData)
	if err != nil {
		m.notifyFailure(err, api.MsgRegisterFailed)
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err := m.establish(ctx, resp)
	if err != nil {
		m.notifyFailure(err, api.MsgRegisterFailed)
		return nil, fmt.Errorf("register: %w", err)
	}
	m.notifier.Success(msgRegisterSuccess)
	return user, nil
}

// Logout tells the backend (best effort) and always clears the local
// session unless the call is rate limited.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.gate.Allow(ctx, storage.KeyLastLogoutAttempt, m.opts.LogoutInterval); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			m.notifyFailure(err, api.MsgLogoutFailed)
			return err
		}
		m.log.Warn().Err(err).Msg("logout rate limit unavailable; continuing")
	}

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	defer m.clearSession(ctx, msgLogoutSuccess)

	if token != "" {
		if err := m.client.Logout(ctx, token); err != nil {
			m.log.Warn().Err(err).Msg("server logout failed; clearing local session anyway")
		}
	}
	return nil
}

// UpdateUser shallow-merges partial into the current user, in memory and in
// storage. The backend is not contacted.
func (m *Manager) UpdateUser(ctx context.Context, partial map[string]any) (*model.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	doc := m.doc
	authed := m.user != nil
	m.mu.RUnlock()
	if !authed {
		return nil, ErrNotAuthenticated
	}

	merged, err := doc.Merge(partial)
	if err != nil {
		return nil, fmt.Errorf("merge user: %w", err)
	}
	user, err := merged.User()
	if err != nil {
		return nil, err
	}
	if err := m.persistUser(ctx, merged); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.doc = merged
	m.user = user
	m.mu.Unlock()

	out := *user
	return &out, nil
}

// Restore re-establishes a stored session on start-up. Without a stored
// token it does nothing; otherwise the session is verifying until the
// current user is fetched. Any failure logs the session out.
func (m *Manager) Restore(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	found, err := m.loadStoredLocked(ctx)
	if err != nil || !found {
		return err
	}

	if err := m.ensureFreshLocked(ctx); err != nil {
		m.forceLogout(ctx, err)
		return fmt.Errorf("refresh stored session: %w", err)
	}

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	doc, err := m.client.Me(ctx, token)
	if err != nil {
		m.forceLogout(ctx, err)
		return fmt.Errorf("fetch current user: %w", err)
	}
	user, err := doc.User()
	if err != nil {
		m.forceLogout(ctx, err)
		return err
	}
	if err := m.persistUser(ctx, doc); err != nil {
		m.log.Warn().Err(err).Msg("could not persist restored user")
	}

	m.mu.Lock()
	m.doc = doc.Clone()
	m.user = user
	m.state = StateAuthenticated
	m.loading = false
	m.mu.Unlock()

	m.connectRealtime(ctx, token)
	m.log.Info().Str("user_id", user.ID).Msg("session restored")
	return nil
}

// LoadStored picks up a stored token and marks the session verifying until
// Restore completes. It reports whether a token was found. Call it before
// serving requests so readers see the loading state from the start.
func (m *Manager) LoadStored(ctx context.Context) (bool, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.loadStoredLocked(ctx)
}

func (m *Manager) loadStoredLocked(ctx context.Context) (bool, error) {
	token, ok, err := m.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return false, fmt.Errorf("read stored token: %w", err)
	}
	if !ok || token == "" {
		m.log.Debug().Msg("no stored token; session is anonymous")
		return false, nil
	}
	refresh, _, err := m.store.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return false, fmt.Errorf("read stored refresh token: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.refreshToken = refresh
	m.state = StateVerifying
	m.loading = true
	m.mu.Unlock()
	return true, nil
}

// establish stores a successful auth response and marks the session
// authenticated. Storage is written before memory so a crash never leaves a
// user without a persisted token.
func (m *Manager) establish(ctx context.Context, resp *api.AuthResponse) (*model.User, error) {
	if resp == nil || resp.Token == "" || resp.Data.User == nil {
		return nil, ErrInvalidAuthResponse
	}
	user, err := resp.Data.User.User()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuthResponse, err)
	}

	if err := m.store.Set(ctx, storage.KeyToken, resp.Token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	if resp.RefreshToken != "" {
		err = m.store.Set(ctx, storage.KeyRefreshToken, resp.RefreshToken)
	} else {
		err = m.store.Delete(ctx, storage.KeyRefreshToken)
	}
	if err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	if err := m.persistUser(ctx, resp.Data.User); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.token = resp.Token
	m.refreshToken = resp.RefreshToken
	m.doc = resp.Data.User.Clone()
	m.user = user
	m.challenge = nil
	m.state = StateAuthenticated
	m.loading = false
	m.mu.Unlock()

	m.connectRealtime(ctx, resp.Token)
	m.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("session established")

	out := *user
	return &out, nil
}

func (m *Manager) persistUser(ctx context.Context, doc model.Document) error {
	raw, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyUser, raw); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

// clearSession removes every trace of the session. It runs with a context
// detached from cancellation so an aborted request still cleans up.
func (m *Manager) clearSession(ctx context.Context, message string) {
	ctx = context.WithoutCancel(ctx)
	if err := m.store.Delete(ctx, storage.KeyToken, storage.KeyRefreshToken, storage.KeyUser); err != nil {
		m.log.Error().Err(err).Msg("failed to remove persisted session")
	}

	m.mu.Lock()
	m.token = ""
	m.refreshToken = ""
	m.user = nil
	m.doc = nil
	m.challenge = nil
	m.state = StateAnonymous
	m.loading = false
	m.mu.Unlock()

	m.realtime.Disconnect()
	if message != "" {
		m.notifier.Success(message)
	}
}

// forceLogout drops the session without calling the backend. A 401/403
// means the backend revoked the session; anything else is a failure to
// verify it.
func (m *Manager) forceLogout(ctx context.Context, cause error) {
	msg := msgSessionUnverified
	if api.IsUnauthorized(cause) {
		msg = msgSessionExpired
		m.log.Info().Err(cause).Msg("session rejected by backend; logging out")
	} else {
		m.log.Warn().Err(cause).Msg("session could not be verified; logging out")
	}
	m.clearSession(ctx, "")
	m.notifier.Error(msg)
}

func (m *Manager) connectRealtime(ctx context.Context, token string) {
	if err := m.realtime.Connect(ctx, token); err != nil {
		m.log.Warn().Err(err).Msg("realtime connect failed")
	}
}

func (m *Manager) notifyFailure(err error, fallback string) {
	m.notifier.Error(userMessage(err, fallback))
}

// userMessage picks the text shown for a failed operation
func userMessage(err error, fallback string) string {
	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		return fmt.Sprintf("Please wait %d seconds before trying again", limitErr.RetryAfterSeconds())
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
