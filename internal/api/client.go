package api

import (
	"context"

	"github.com/creatorhub/sessiond/internal/model"
)

// AuthData is the data envelope of the auth endpoints. A login that needs a
// second factor sets Requires2FA and UserID and carries no user.
type AuthData struct {
	User        model.Document `json:"user,omitempty"`
	Requires2FA bool           `json:"requires2FA,omitempty"`
	UserID      string         `json:"userId,omitempty"`
}

// AuthResponse is returned by login, 2FA verification and registration
type AuthResponse struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Data         AuthData `json:"data"`
}

// TokenPair is returned by the refresh endpoint
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Client is the platform backend as seen by the session manager
type Client interface {
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	VerifyTwoFactor(ctx context.Context, userID, code, backupCode string) (*AuthResponse, error)
	Register(ctx context.Context, userData map[string]any) (*AuthResponse, error)
	// Logout notifies the backend; token is the current access token
	Logout(ctx context.Context, token string) error
	// Me fetches the user the access token belongs to
	Me(ctx context.Context, token string) (model.Document, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}
