package outbreak

import (
	"context"
	"time"

	"cropradar/internal/types"
)

// WindowQuery selects the qualifying reports of one cell within a trailing
// window. A report qualifies when its confidence is at least MinConfidence,
// or when it carries no confidence and did not come from a scan.
type WindowQuery struct {
	Geohash5      string
	Crop          types.Crop
	SinceHours    int
	MinConfidence float64
}

// CellsQuery selects qualifying reports across many cells. Exactly one of
// SinceHours or Days is used by each method.
type CellsQuery struct {
	Geohashes     []string
	Crop          types.Crop
	SinceHours    int
	Days          int
	MinConfidence float64
}

// ReportRepository is the storage port of the engine. Implementations own
// persistence, write serialization, cancellation, and retries; the engine
// never retries and returns their errors unchanged.
type ReportRepository interface {
	// InsertReport appends a report. The report is never mutated afterwards.
	InsertReport(ctx context.Context, report *types.OutbreakReport) (string, error)

	// GetCountsByDay returns per-UTC-day counts in ascending date order.
	GetCountsByDay(ctx context.Context, q WindowQuery) ([]types.DailyCount, error)

	// GetTopLabels returns up to limit labels by descending frequency.
	GetTopLabels(ctx context.Context, q WindowQuery, limit int) ([]types.LabelCount, error)

	// GetTotal returns the number of qualifying reports.
	GetTotal(ctx context.Context, q WindowQuery) (int, error)

	// GetUniqueFields returns the number of distinct fields affected. Reports
	// without a field ID count individually. Nil when nothing qualifies.
	GetUniqueFields(ctx context.Context, q WindowQuery) (*int, error)

	// GetRadarCounts returns current-window counts for the cells that have at
	// least one qualifying report, using q.SinceHours.
	GetRadarCounts(ctx context.Context, q CellsQuery) ([]types.CellCount, error)

	// GetDailyCountsByCell returns, per cell, the counts of every UTC day in
	// the trailing q.Days window that has at least one qualifying report.
	// Cells without observations are absent from the map.
	GetDailyCountsByCell(ctx context.Context, q CellsQuery) (map[string][]int, error)
}

// CellLister enumerates cells with recent activity. Used by the baseline
// warmer; implemented by the same repositories as ReportRepository.
type CellLister interface {
	ListActiveCells(ctx context.Context, crop types.Crop, days int, minConfidence float64) ([]string, error)
}

// ReviewReader reads reports by acceptance status. Used by the review export.
type ReviewReader interface {
	ListReportsByStatus(ctx context.Context, status types.ReportStatus, from, to time.Time) ([]types.OutbreakReport, error)
}

// EventPublisher announces accepted reports to downstream consumers.
type EventPublisher interface {
	PublishReportAccepted(ctx context.Context, event types.ReportEvent) error
}

// BaselineProvider returns baseline statistics keyed by geohash5. Cells with
// no history in the window are absent from the result.
type BaselineProvider interface {
	Baselines(ctx context.Context, cells []string, crop types.Crop) (map[string]types.BaselineStat, error)
}

// IDGenerator produces report identifiers.
type IDGenerator func() string
