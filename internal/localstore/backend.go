// Package localstore persists per-profile client state: the anonymous cart and
// the stored session credentials.
package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when the key holds no value.
var ErrNotFound = errors.New("localstore: entry not found")

// Backend is a string key/value store scoped by device profile.
type Backend interface {
	Get(ctx context.Context, profileID, key string) (string, error)
	Set(ctx context.Context, profileID, key, value string) error
	Delete(ctx context.Context, profileID, key string) error
}
