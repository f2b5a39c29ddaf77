package auth

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a current user
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoTwoFactorChallenge is returned by VerifyTwoFactor without a pending challenge
	ErrNoTwoFactorChallenge = errors.New("no two-factor challenge pending")
	// ErrInvalidAuthResponse is returned when a successful auth call lacks a token or user
	ErrInvalidAuthResponse = errors.New("auth response without token or user")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held
	ErrNoRefreshToken = errors.New("no refresh token")
)
