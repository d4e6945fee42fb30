package metrics

import (
	"context"

	"cropradar/internal/cache"
	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// EngineRecorder is the union of the engine and cache telemetry hooks.
type EngineRecorder interface {
	outbreak.Metrics
	cache.LookupRecorder
}

// Fanout forwards every measurement to each recorder in order.
type Fanout []EngineRecorder

var (
	_ outbreak.Metrics     = Fanout(nil)
	_ cache.LookupRecorder = Fanout(nil)
)

func (f Fanout) RecordSubmission(ctx context.Context, source types.ReportSource, status types.ReportStatus) {
	for _, r := range f {
		r.RecordSubmission(ctx, source, status)
	}
}

func (f Fanout) RecordRadar(ctx context.Context, crop types.Crop, bySeverity map[types.Severity]int) {
	for _, r := range f {
		r.RecordRadar(ctx, crop, bySeverity)
	}
}

func (f Fanout) RecordCacheLookup(ctx context.Context, backend string, hits, misses int) {
	for _, r := range f {
		r.RecordCacheLookup(ctx, backend, hits, misses)
	}
}
