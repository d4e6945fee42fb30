package cache

import (
	"context"
	"time"
)

// Store is a key/value backend for baseline entries.
type Store interface {
	// GetMany returns the entries found for keys. Missing or expired keys are
	// absent from the result.
	GetMany(ctx context.Context, keys []string) (map[string]Entry, error)

	// SetMany writes entries with the given time to live.
	SetMany(ctx context.Context, entries map[string]Entry, ttl time.Duration) error

	// Name identifies the backend in logs and metrics.
	Name() string
}
