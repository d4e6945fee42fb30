package outbreak

import (
	"context"
	"log/slog"

	"cropradar/internal/types"
)

// BaselineService computes per-cell historical medians and standard
// deviations of daily counts over the trailing baseline window.
//
// Baselines always use the configured MinConfidence, never a caller-supplied
// one, so baselines stay comparable across requests.
type BaselineService struct {
	repo       ReportRepository
	thresholds Thresholds
	logger     *slog.Logger
}

var _ BaselineProvider = (*BaselineService)(nil)

// NewBaselineService creates a BaselineService reading through repo.
func NewBaselineService(repo ReportRepository, thresholds Thresholds, logger *slog.Logger) *BaselineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaselineService{
		repo:       repo,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Baselines returns the baseline for every requested cell that has at least
// one qualifying report in the window. Cells without history are absent;
// callers join them with DefaultBaseline.
func (s *BaselineService) Baselines(ctx context.Context, cells []string, crop types.Crop) (map[string]types.BaselineStat, error) {
	if len(cells) == 0 {
		return map[string]types.BaselineStat{}, nil
	}

	series, err := s.repo.GetDailyCountsByCell(ctx, CellsQuery{
		Geohashes:     cells,
		Crop:          crop,
		Days:          s.thresholds.BaselineDays,
		MinConfidence: s.thresholds.MinConfidence,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.BaselineStat, len(series))
	for cell, counts := range series {
		if stat, ok := ComputeBaseline(cell, counts, s.thresholds.SigmaFloor); ok {
			out[cell] = stat
		}
	}
	s.logger.DebugContext(ctx, "baselines computed",
		"crop", string(crop),
		"requested_cells", len(cells),
		"cells_with_history", len(out),
	)
	return out, nil
}

// DefaultBaseline is the baseline assumed for a cell with no history.
func (t Thresholds) DefaultBaseline(geohash5 string) types.BaselineStat {
	return types.BaselineStat{Geohash5: geohash5, Median: 0, Sigma: t.SigmaFloor}
}
