package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// DefaultWarmChunkSize matches the radar's per-request cell limit so each
// refresh costs the same as one radar call.
const DefaultWarmChunkSize = 100

// warmConcurrency bounds parallel refreshes against the database.
const warmConcurrency = 4

// WarmResult summarizes one crop's warm run.
type WarmResult struct {
	Crop             types.Crop
	ActiveCells      int
	CellsWithHistory int
	Chunks           int
}

// Warmer primes the baseline cache for recently active cells so the first
// radar request of the day does not pay for the full baseline scan.
type Warmer struct {
	lister     outbreak.CellLister
	cache      *CachedBaselines
	thresholds outbreak.Thresholds
	chunkSize  int
	logger     *slog.Logger
}

// NewWarmer creates a Warmer. chunkSize <= 0 uses DefaultWarmChunkSize.
func NewWarmer(lister outbreak.CellLister, cache *CachedBaselines, thresholds outbreak.Thresholds, chunkSize int, logger *slog.Logger) *Warmer {
	if chunkSize <= 0 {
		chunkSize = DefaultWarmChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{
		lister:     lister,
		cache:      cache,
		thresholds: thresholds,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// Warm refreshes every cell of crop with qualifying activity inside the
// baseline window. The first failing chunk cancels the rest.
func (w *Warmer) Warm(ctx context.Context, crop types.Crop) (WarmResult, error) {
	res := WarmResult{Crop: crop}

	cells, err := w.lister.ListActiveCells(ctx, crop, w.thresholds.BaselineDays, w.thresholds.MinConfidence)
	if err != nil {
		return res, err
	}
	res.ActiveCells = len(cells)

	var withHistory atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for start := 0; start < len(cells); start += w.chunkSize {
		chunk := cells[start:min(start+w.chunkSize, len(cells))]
		res.Chunks++
		g.Go(func() error {
			n, err := w.cache.Refresh(gctx, chunk, crop)
			if err != nil {
				return err
			}
			withHistory.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.CellsWithHistory = int(withHistory.Load())

	w.logger.InfoContext(ctx, "baseline cache warmed",
		"crop", string(crop),
		"active_cells", res.ActiveCells,
		"chunks", res.Chunks,
	)
	return res, nil
}
