package storage

import (
	"context"
	"time"
)

// Store is the narrow key-value surface draft persistence sits on. Keeping
// it this small lets the backend be swapped between browser-local semantics
// (memory, file) and shared server-side ones (redis, database) without the
// draft layer changing.
type Store interface {
	// Get returns the stored value and whether the key exists. A missing
	// key is (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key, replacing any prior value. A zero ttl
	// means no backend-level expiry; backends that cannot expire ignore
	// ttl and rely on callers' age checks.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
