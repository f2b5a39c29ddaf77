package auth

import "github.com/creatorhub/sessiond/internal/model"

// State of the session lifecycle
type State string

const (
	StateAnonymous State = "anonymous"
	// StateVerifying is the start-up sub-state of anonymous while a stored
	// token is checked against the backend.
	StateVerifying        State = "verifying"
	StatePendingTwoFactor State = "pending_2fa"
	StateAuthenticated    State = "authenticated"
)

// Snapshot is a read-only copy of the session for other components
type Snapshot struct {
	State           State                     `json:"state"`
	User            *model.User               `json:"-"`
	Document        model.Document            `json:"user"`
	Token           string                    `json:"token,omitempty"`
	Loading         bool                      `json:"loading"`
	IsAuthenticated bool                      `json:"isAuthenticated"`
	TwoFactor       *model.TwoFactorChallenge `json:"twoFactor,omitempty"`
}

// LoginResult is either a pending two-factor challenge or the logged-in user
type LoginResult struct {
	Challenge *model.TwoFactorChallenge `json:"twoFactor,omitempty"`
	User      *model.User               `json:"-"`
}

// RequiresTwoFactor reports whether the login stopped at a 2FA challenge
func (r *LoginResult) RequiresTwoFactor() bool {
	return r != nil && r.Challenge != nil
}

// State returns a snapshot of the session
func (m *Manager) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		State:           m.state,
		Document:        m.doc.Clone(),
		Token:           m.token,
		Loading:         m.loading,
		IsAuthenticated: m.user != nil,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	if m.challenge != nil {
		c := *m.challenge
		s.TwoFactor = &c
	}
	return s
}

// IsAuthenticated reports whether a user is held
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// CurrentUser returns a copy of the current user
func (m *Manager) CurrentUser() (*model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, false
	}
	u := *m.user
	return &u, true
}
