// Package cache persists per-feed post windows so a feed can render
// immediately on open while a network refresh runs behind it. Stores are
// last-writer-wins; the live window and the cached copy may transiently
// diverge and reconcile on the next load.
package cache

import (
	"context"
	"time"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

// Store is the persistent post cache keyed by feed identity.
type Store interface {
	// Get returns the cached window for key, or nil on a miss.
	Get(ctx context.Context, key string) ([]timeline.Post, error)
	// Set replaces the cached window for key.
	Set(ctx context.Context, key string, posts []timeline.Post) error
	// IsValid reports whether the entry for key exists and is younger than ttl.
	IsValid(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}
