package storage

import (
	"context"
	"errors"
)

// Keys of the persisted session state. The names match the ones the web
// client keeps in local storage so both can share a store.
const (
	KeyToken               = "token"
	KeyRefreshToken        = "refreshToken"
	KeyUser                = "user"
	KeyLastLoginAttempt    = "lastLoginAttempt"
	KeyLastRegisterAttempt = "lastRegisterAttempt"
	KeyLastLogoutAttempt   = "lastLogoutAttempt"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a durable string key–value store, the local-storage equivalent
type Store interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
