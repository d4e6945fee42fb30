// Package cache memoizes per-cell baseline statistics. Baselines re-scan a
// month of history, so the radar reads them through CachedBaselines, backed
// by Redis in deployed environments and by process memory in local mode.
package cache
