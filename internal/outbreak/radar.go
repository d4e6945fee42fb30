package outbreak

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"cropradar/internal/types"
)

// Legend colors shipped with every radar response. They are a display hint,
// not derived data.
const (
	ColorStable  = "#22c55e"
	ColorRising  = "#f59e0b"
	ColorSurging = "#ef4444"
)

// Legend returns a fresh copy of the severity color table.
func Legend() map[types.Severity]string {
	return map[types.Severity]string{
		types.SeverityStable:  ColorStable,
		types.SeverityRising:  ColorRising,
		types.SeveritySurging: ColorSurging,
	}
}

// RadarAssembler builds the multi-cell radar overlay.
type RadarAssembler struct {
	repo       ReportRepository
	baselines  BaselineProvider
	thresholds Thresholds
	metrics    Metrics
	logger     *slog.Logger
}

// NewRadarAssembler creates a RadarAssembler. baselines is usually a
// BaselineService, optionally wrapped by a cache.
func NewRadarAssembler(repo ReportRepository, baselines BaselineProvider, thresholds Thresholds, metrics Metrics, logger *slog.Logger) *RadarAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &RadarAssembler{
		repo:       repo,
		baselines:  baselines,
		thresholds: thresholds,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetRadar fetches current-window counts and baselines for the requested
// cells in parallel, joins them by geohash5, and classifies each bucket.
// Cells without a baseline are classified against DefaultBaseline. Buckets
// are returned for cells with at least one qualifying report, sorted by
// geohash5.
func (r *RadarAssembler) GetRadar(ctx context.Context, q types.RadarQuery) (*types.RadarResponse, error) {
	sinceHours := r.thresholds.resolveWindow(q.SinceHours)
	cells := dedupeCells(q.Geohashes)

	resp := &types.RadarResponse{
		Buckets:    []types.RadarBucket{},
		Legend:     Legend(),
		SinceHours: sinceHours,
	}
	if len(cells) == 0 {
		return resp, nil
	}

	var (
		counts    []types.CellCount
		baselines map[string]types.BaselineStat
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = r.repo.GetRadarCounts(gctx, CellsQuery{
			Geohashes:     cells,
			Crop:          q.Crop,
			SinceHours:    sinceHours,
			MinConfidence: r.thresholds.resolveMinConfidence(q.MinConfidence),
		})
		return err
	})
	g.Go(func() error {
		var err error
		baselines, err = r.baselines.Baselines(gctx, cells, q.Crop)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySeverity := make(map[types.Severity]int, len(types.AllSeverities))
	for _, cc := range counts {
		base, ok := baselines[cc.Geohash5]
		if !ok {
			base = r.thresholds.DefaultBaseline(cc.Geohash5)
		}
		severity := Classify(float64(cc.Count), base.Median, base.Sigma, r.thresholds.Bands)
		bySeverity[severity]++

		count := cc.Count
		resp.Buckets = append(resp.Buckets, types.RadarBucket{
			Geohash5:   cc.Geohash5,
			Count:      &count,
			Severity:   severity,
			KAnonymity: r.thresholds.MeetsKAnonymity(cc.Count),
		})
	}
	slices.SortFunc(resp.Buckets, func(a, b types.RadarBucket) int {
		switch {
		case a.Geohash5 < b.Geohash5:
			return -1
		case a.Geohash5 > b.Geohash5:
			return 1
		}
		return 0
	})

	r.metrics.RecordRadar(ctx, q.Crop, bySeverity)

	return resp, nil
}

// dedupeCells normalizes cells and drops duplicates and blanks, preserving
// first-seen order.
func dedupeCells(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		c = types.NormalizeGeohash(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
