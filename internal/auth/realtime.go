package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Realtime is the push channel opened with the access token once a session
// is established and closed on logout.
type Realtime interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
}

// RealtimeStatus describes the channel for state snapshots
type RealtimeStatus struct {
	Connected   bool      `json:"connected"`
	Subject     string    `json:"subject,omitempty"`
	ConnectedAt time.Time `json:"connectedAt,omitempty"`
}

// ConnectionTracker is a Realtime that records which principal the channel
// is bound to. It stands in where no push transport is configured.
type ConnectionTracker struct {
	mu     sync.RWMutex
	status RealtimeStatus
	tokens *TokenInspector
}

var _ Realtime = (*ConnectionTracker)(nil)

func NewConnectionTracker() *ConnectionTracker {
	return &ConnectionTracker{tokens: NewTokenInspector()}
}

// Connect binds the channel to token, replacing any previous binding
func (c *ConnectionTracker) Connect(_ context.Context, token string) error {
	sub := c.tokens.Subject(token)

	c.mu.Lock()
	c.status = RealtimeStatus{Connected: true, Subject: sub, ConnectedAt: time.Now()}
	c.mu.Unlock()

	log.Info().Str("subject", sub).Msg("realtime connected")
	return nil
}

// Disconnect is a no-op when not connected
func (c *ConnectionTracker) Disconnect() {
	c.mu.Lock()
	was := c.status.Connected
	c.status = RealtimeStatus{}
	c.mu.Unlock()

	if was {
		log.Info().Msg("realtime disconnected")
	}
}

// Status returns the current binding
func (c *ConnectionTracker) Status() RealtimeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
