// Package cache defines the persistent key-value store that holds session
// artifacts between process runs.
package cache

import (
	"context"
)

// Keys used for session artifacts.
const (
	KeyUser         = "user"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// SessionKeys lists every key written for a session. They are written and
// removed together.
var SessionKeys = []string{KeyUser, KeyAccessToken, KeyRefreshToken}

// Cache is a scoped string key-value store. Implementations need not be
// transactional; callers compensate for partial states.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
	// RemoveMany deletes keys; missing keys are not an error.
	RemoveMany(ctx context.Context, keys ...string) error
	// Close releases the backend.
	Close() error
}
