package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// keyPrefix versions the entry layout; bump it when Entry changes.
const keyPrefix = "outbreak:baseline:v1:"

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 15 * time.Minute

// LookupRecorder receives cache hit and miss counts.
type LookupRecorder interface {
	RecordCacheLookup(ctx context.Context, backend string, hits, misses int)
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheLookup(context.Context, string, int, int) {}

// CachedBaselines decorates a BaselineProvider with a per-cell cache. Cells
// without history are cached as absent so quiet areas stay cheap. Cache
// failures never fail a request; the lookup falls through to the wrapped
// provider.
type CachedBaselines struct {
	inner    outbreak.BaselineProvider
	store    Store
	ttl      time.Duration
	days     int
	clock    types.Clock
	recorder LookupRecorder
	logger   *slog.Logger
}

var _ outbreak.BaselineProvider = (*CachedBaselines)(nil)

// Option customizes CachedBaselines.
type Option func(*CachedBaselines)

// WithClock overrides the clock used for the daily key component.
func WithClock(c types.Clock) Option {
	return func(cb *CachedBaselines) { cb.clock = c }
}

// WithRecorder reports hit and miss counts to r.
func WithRecorder(r LookupRecorder) Option {
	return func(cb *CachedBaselines) {
		if r != nil {
			cb.recorder = r
		}
	}
}

// WithLogger sets the logger used for degraded-cache warnings.
func WithLogger(l *slog.Logger) Option {
	return func(cb *CachedBaselines) {
		if l != nil {
			cb.logger = l
		}
	}
}

// NewCachedBaselines wraps inner. baselineDays must match the window inner
// computes over, since it is part of the key.
func NewCachedBaselines(inner outbreak.BaselineProvider, store Store, ttl time.Duration, baselineDays int, opts ...Option) *CachedBaselines {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cb := &CachedBaselines{
		inner:    inner,
		store:    store,
		ttl:      ttl,
		days:     baselineDays,
		clock:    types.RealClock{},
		recorder: noopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cb)
		}
	}
	return cb
}

// Key returns the cache key of one cell. The UTC date component expires every
// entry at midnight regardless of TTL.
func (c *CachedBaselines) Key(crop types.Crop, geohash5 string) string {
	return keyPrefix + string(crop) + ":" + strconv.Itoa(c.days) + ":" +
		c.clock.Now().UTC().Format("20060102") + ":" + geohash5
}

// Baselines returns cached baselines and computes the rest through the
// wrapped provider. Errors from the wrapped provider are returned unchanged.
func (c *CachedBaselines) Baselines(ctx context.Context, cells []string, crop types.Crop) (map[string]types.BaselineStat, error) {
	out := make(map[string]types.BaselineStat, len(cells))
	if len(cells) == 0 {
		return out, nil
	}

	keys := make([]string, len(cells))
	for i, cell := range cells {
		keys[i] = c.Key(crop, cell)
	}

	found, err := c.store.GetMany(ctx, keys)
	if err != nil {
		c.logger.WarnContext(ctx, "baseline cache read failed, computing directly",
			"backend", c.store.Name(),
			"cells", len(cells),
			"error", err,
		)
		found = nil
	}

	var missing []string
	for i, cell := range cells {
		entry, ok := found[keys[i]]
		if !ok {
			missing = append(missing, cell)
			continue
		}
		if !entry.Absent {
			out[cell] = types.BaselineStat{Geohash5: cell, Median: entry.Median, Sigma: entry.Sigma}
		}
	}
	c.recorder.RecordCacheLookup(ctx, c.store.Name(), len(cells)-len(missing), len(missing))

	if len(missing) == 0 {
		return out, nil
	}
	computed, err := c.fill(ctx, missing, crop)
	if err != nil {
		return nil, err
	}
	for cell, stat := range computed {
		out[cell] = stat
	}
	return out, nil
}

// Refresh recomputes cells through the wrapped provider and overwrites their
// cache entries. It returns the number of cells with history.
func (c *CachedBaselines) Refresh(ctx context.Context, cells []string, crop types.Crop) (int, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	computed, err := c.fill(ctx, cells, crop)
	if err != nil {
		return 0, err
	}
	return len(computed), nil
}

func (c *CachedBaselines) fill(ctx context.Context, cells []string, crop types.Crop) (map[string]types.BaselineStat, error) {
	computed, err := c.inner.Baselines(ctx, cells, crop)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(cells))
	for _, cell := range cells {
		stat, ok := computed[cell]
		if !ok {
			entries[c.Key(crop, cell)] = Entry{Absent: true}
			continue
		}
		entries[c.Key(crop, cell)] = Entry{Median: stat.Median, Sigma: stat.Sigma}
	}
	if err := c.store.SetMany(ctx, entries, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "baseline cache write failed",
			"backend", c.store.Name(),
			"cells", len(cells),
			"error", err,
		)
	}
	return computed, nil
}
