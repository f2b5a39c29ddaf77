package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/storage"
)

// Refresh exchanges the refresh token for a new token pair. If the backend
// rejects the refresh token the session is logged out.
func (m *Manager) Refresh(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	err := m.refreshLocked(ctx)
	if err != nil && api.IsRejected(err) {
		m.forceLogout(ctx, err)
	}
	return err
}

// EnsureFresh refreshes the access token when its exp claim falls within
// the configured skew. Opaque tokens and sessions without a refresh token
// are left alone.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	err := m.ensureFreshLocked(ctx)
	if err != nil && api.IsRejected(err) {
		m.forceLogout(ctx, err)
	}
	return err
}

// KeepFresh calls EnsureFresh every interval while a user is logged in,
// until ctx is done.
func (m *Manager) KeepFresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.IsAuthenticated() {
				continue
			}
			if err := m.EnsureFresh(ctx); err != nil {
				m.log.Warn().Err(err).Msg("background token refresh failed")
			}
		}
	}
}

func (m *Manager) ensureFreshLocked(ctx context.Context) error {
	m.mu.RLock()
	token, refresh := m.token, m.refreshToken
	m.mu.RUnlock()

	if token == "" {
		return ErrNotAuthenticated
	}
	exp, ok := m.tokens.ExpiresAt(token)
	if !ok || refresh == "" {
		return nil
	}
	if m.opts.Now().Add(m.opts.RefreshSkew).Before(exp) {
		return nil
	}

	m.log.Debug().Time("expires_at", exp).Msg("access token near expiry; refreshing")
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	m.mu.RLock()
	refresh := m.refreshToken
	authed := m.user != nil
	m.mu.RUnlock()

	if refresh == "" {
		return ErrNoRefreshToken
	}

	pair, err := m.client.Refresh(ctx, refresh)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	// backends that do not rotate refresh tokens omit the new one
	newRefresh := pair.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}

	if err := m.store.Set(ctx, storage.KeyToken, pair.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyRefreshToken, newRefresh); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}

	m.mu.Lock()
	m.token = pair.Token
	m.refreshToken = newRefresh
	m.mu.Unlock()

	if authed {
		m.realtime.Disconnect()
		m.connectRealtime(ctx, pair.Token)
	}
	m.log.Info().Msg("access token refreshed")
	return nil
}
