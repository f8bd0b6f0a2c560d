// Package store provides rate limit window backends.
package store

import (
	"context"
	"time"
)

// Decision is the outcome of a window check. ResetAt is the epoch
// second at which the client may retry; it is zero when Allowed.
type Decision struct {
	Allowed bool
	ResetAt int64
}

// Store defines the interface for rate limit window backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Check counts admitted events for the key within the trailing
	// window and, when under the limit, records the current request.
	// The key expires after the window duration so abandoned keys
	// self-clean; there is no explicit delete path.
	Check(ctx context.Context, key string, limit uint64, window time.Duration) (Decision, error)

	// Close releases any resources held by the store.
	Close() error
}
