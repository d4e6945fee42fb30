package outbreak

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cropradar/internal/types"
)

// Aggregator computes single-cell outbreak summaries.
type Aggregator struct {
	repo       ReportRepository
	thresholds Thresholds
	clock      types.Clock
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator reading through repo.
func NewAggregator(repo ReportRepository, thresholds Thresholds, clock types.Clock, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Aggregator{
		repo:       repo,
		thresholds: thresholds,
		clock:      clock,
		logger:     logger,
	}
}

// GetOutbreak summarizes one cell over the requested window.
//
// The trend, top labels, total, and unique-field reads are independent and
// run concurrently. If any of them fails the whole summary fails with that
// error; there is no partial response. KAnonymity is set when the total meets
// the configured K, and it is the caller's job to redact the breakdown when it
// does not.
func (a *Aggregator) GetOutbreak(ctx context.Context, q types.OutbreakQuery) (*types.OutbreakResponse, error) {
	wq := WindowQuery{
		Geohash5:      types.NormalizeGeohash(q.Geohash5),
		Crop:          q.Crop,
		SinceHours:    a.thresholds.resolveWindow(q.SinceHours),
		MinConfidence: a.thresholds.resolveMinConfidence(q.MinConfidence),
	}

	var (
		trend   []types.DailyCount
		labels  []types.LabelCount
		total   int
		uniques *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trend, err = a.repo.GetCountsByDay(gctx, wq)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = a.repo.GetTopLabels(gctx, wq, a.thresholds.TopLabels)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.repo.GetTotal(gctx, wq)
		return err
	})
	g.Go(func() error {
		var err error
		uniques, err = a.repo.GetUniqueFields(gctx, wq)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if trend == nil {
		trend = []types.DailyCount{}
	}
	if labels == nil {
		labels = []types.LabelCount{}
	}

	a.logger.DebugContext(ctx, "outbreak summary computed",
		"geohash5", wq.Geohash5,
		"crop", string(wq.Crop),
		"window_hours", wq.SinceHours,
		"total_reports", total,
	)

	return &types.OutbreakResponse{
		Geohash5:     wq.Geohash5,
		Crop:         wq.Crop,
		WindowHours:  wq.SinceHours,
		TotalReports: total,
		UniqueFields: uniques,
		TopLabels:    labels,
		Trend:        trend,
		Confidence: types.ResponseConfidence{
			KAnonymity:    a.thresholds.MeetsKAnonymity(total),
			MinConfidence: wq.MinConfidence,
		},
		LastUpdated: a.clock.Now(),
	}, nil
}
