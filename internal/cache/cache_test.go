package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingProvider serves fixed baselines and records each requested batch.
type countingProvider struct {
	mu    sync.Mutex
	stats map[string]types.BaselineStat
	err   error
	calls [][]string
}

func (p *countingProvider) Baselines(_ context.Context, cells []string, _ types.Crop) (map[string]types.BaselineStat, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]string(nil), cells...))
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]types.BaselineStat)
	for _, c := range cells {
		if st, ok := p.stats[c]; ok {
			out[c] = st
		}
	}
	return out, nil
}

// failingStore fails every call.
type failingStore struct{ err error }

func (s failingStore) GetMany(context.Context, []string) (map[string]Entry, error) { return nil, s.err }
func (s failingStore) SetMany(context.Context, map[string]Entry, time.Duration) error {
	return s.err
}
func (failingStore) Name() string { return "failing" }

type recordedLookup struct {
	backend      string
	hits, misses int
}

type lookupRecorder struct {
	lookups []recordedLookup
}

func (r *lookupRecorder) RecordCacheLookup(_ context.Context, backend string, hits, misses int) {
	r.lookups = append(r.lookups, recordedLookup{backend, hits, misses})
}

var cacheNow = time.Date(2026, 3, 4, 23, 50, 0, 0, time.UTC)

func newTestCache(inner outbreak.BaselineProvider, store Store, clock *testClock, rec LookupRecorder) *CachedBaselines {
	return NewCachedBaselines(inner, store, 15*time.Minute, 30, WithClock(clock), WithRecorder(rec))
}

func TestCachedBaselines_Key(t *testing.T) {
	clock := &testClock{now: cacheNow}
	c := newTestCache(&countingProvider{}, NewMemoryStore(clock), clock, nil)

	assert.Equal(t, "outbreak:baseline:v1:rice:30:20260304:w4rqn", c.Key(types.CropRice, "w4rqn"))
}

func TestCachedBaselines_MissThenHit(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 2, Sigma: 1},
	}}
	rec := &lookupRecorder{}
	c := newTestCache(inner, NewMemoryStore(clock), clock, rec)
	cells := []string{"w4rqn", "w4rqp"}

	first, err := c.Baselines(context.Background(), cells, types.CropRice)
	require.NoError(t, err)
	second, err := c.Baselines(context.Background(), cells, types.CropRice)
	require.NoError(t, err)

	want := map[string]types.BaselineStat{"w4rqn": {Geohash5: "w4rqn", Median: 2, Sigma: 1}}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second, "cells without history stay absent when served from cache")
	assert.Len(t, inner.calls, 1)
	assert.Equal(t, []recordedLookup{
		{backend: "memory", hits: 0, misses: 2},
		{backend: "memory", hits: 2, misses: 0},
	}, rec.lookups)
}

func TestCachedBaselines_OnlyMissingCellsAreComputed(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 1, Sigma: 1},
		"w4rqp": {Geohash5: "w4rqp", Median: 3, Sigma: 2},
	}}
	c := newTestCache(inner, NewMemoryStore(clock), clock, nil)

	_, err := c.Baselines(context.Background(), []string{"w4rqn"}, types.CropRice)
	require.NoError(t, err)
	got, err := c.Baselines(context.Background(), []string{"w4rqn", "w4rqp"}, types.CropRice)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"w4rqp"}, inner.calls[1])
}

func TestCachedBaselines_ExpiresWithTTLAndAtMidnight(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{}
	c := newTestCache(inner, NewMemoryStore(clock), clock, nil)
	cells := []string{"w4rqn"}

	_, _ = c.Baselines(context.Background(), cells, types.CropRice)
	clock.advance(11 * time.Minute)
	_, _ = c.Baselines(context.Background(), cells, types.CropRice)
	assert.Len(t, inner.calls, 2, "crossing midnight changes the key")

	clock.advance(10 * time.Minute)
	_, _ = c.Baselines(context.Background(), cells, types.CropRice)
	assert.Len(t, inner.calls, 2)

	clock.advance(6 * time.Minute)
	_, _ = c.Baselines(context.Background(), cells, types.CropRice)
	assert.Len(t, inner.calls, 3, "entry expired after its TTL")
}

func TestCachedBaselines_CropsAreSeparate(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{}
	c := newTestCache(inner, NewMemoryStore(clock), clock, nil)

	_, _ = c.Baselines(context.Background(), []string{"w4rqn"}, types.CropRice)
	_, _ = c.Baselines(context.Background(), []string{"w4rqn"}, types.CropDurian)
	assert.Len(t, inner.calls, 2)
}

func TestCachedBaselines_StoreFailureDegrades(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 2, Sigma: 1},
	}}
	c := newTestCache(inner, failingStore{err: errors.New("connection refused")}, clock, nil)

	got, err := c.Baselines(context.Background(), []string{"w4rqn"}, types.CropRice)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got["w4rqn"].Median)
}

func TestCachedBaselines_InnerErrorUnchanged(t *testing.T) {
	clock := &testClock{now: cacheNow}
	innerErr := errors.New("statement timeout")
	c := newTestCache(&countingProvider{err: innerErr}, NewMemoryStore(clock), clock, nil)

	got, err := c.Baselines(context.Background(), []string{"w4rqn"}, types.CropRice)
	assert.Nil(t, got)
	assert.Same(t, innerErr, err)
}

func TestCachedBaselines_EmptyCells(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{}
	got, err := newTestCache(inner, NewMemoryStore(clock), clock, nil).Baselines(context.Background(), nil, types.CropRice)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, inner.calls)
}

func TestCachedBaselines_RadarIntegration(t *testing.T) {
	clock := &testClock{now: cacheNow}
	inner := &countingProvider{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 2, Sigma: 1},
	}}
	c := newTestCache(inner, NewMemoryStore(clock), clock, nil)

	// The decorator must be a drop-in for the radar's baseline source.
	var provider outbreak.BaselineProvider = c
	got, err := provider.Baselines(context.Background(), []string{"w4rqn"}, types.CropRice)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["w4rqn"].Sigma)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &testClock{now: cacheNow}
	store := NewMemoryStore(clock)
	require.NoError(t, store.SetMany(context.Background(), map[string]Entry{"a": {Median: 1}, "b": {Absent: true}}, time.Minute))
	assert.Equal(t, 2, store.Len())

	clock.advance(time.Minute)
	assert.Equal(t, 2, store.Sweep())
	assert.Zero(t, store.Len())
}

func TestCodec(t *testing.T) {
	c := newCodec()
	data, err := c.encode(Entry{Median: 2, Sigma: 1.5})
	require.NoError(t, err)

	got, err := c.decode(data)
	require.NoError(t, err)
	assert.Equal(t, Entry{Median: 2, Sigma: 1.5}, got)

	_, err = c.decode([]byte("not zstd"))
	assert.Error(t, err)
}
