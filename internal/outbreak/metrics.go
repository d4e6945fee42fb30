package outbreak

import (
	"context"

	"cropradar/internal/types"
)

// Metrics records engine-level telemetry. Implementations must not block the
// caller on backend failures.
type Metrics interface {
	RecordSubmission(ctx context.Context, source types.ReportSource, status types.ReportStatus)
	RecordRadar(ctx context.Context, crop types.Crop, bySeverity map[types.Severity]int)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordSubmission(context.Context, types.ReportSource, types.ReportStatus) {}
func (NoopMetrics) RecordRadar(context.Context, types.Crop, map[types.Severity]int)          {}
