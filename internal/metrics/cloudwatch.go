// Package metrics publishes engine telemetry to CloudWatch and Prometheus.
package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cropradar/internal/cache"
	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var (
	_ outbreak.Metrics     = (*CloudWatchMetrics)(nil)
	_ cache.LookupRecorder = (*CloudWatchMetrics)(nil)
)

// CloudWatchMetrics emits engine metrics to a CloudWatch namespace.
//
// Metrics emitted:
//   - ReportSubmitted: Dims {Source, Status}
//   - RadarBucket: Dims {Crop, Severity}, one datum per severity band
//   - BaselineCacheLookup: Dims {Result}, hit and miss counts per lookup
//   - ReviewReportsExported: Dims {Crop}
//
// Publishing failures are logged and never returned to the caller.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a publisher for namespace. An empty namespace
// falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSubmission emits a ReportSubmitted count for one accepted report.
func (m *CloudWatchMetrics) RecordSubmission(ctx context.Context, source types.ReportSource, status types.ReportStatus) {
	m.put(ctx, "failed to record submission metric", countDatum(types.MetricReportSubmitted, 1,
		dimension(types.DimSource, string(source)),
		dimension(types.DimStatus, string(status)),
	))
}

// RecordRadar emits one RadarBucket datum per severity band, including bands
// with zero cells so dashboards show a continuous series.
func (m *CloudWatchMetrics) RecordRadar(ctx context.Context, crop types.Crop, bySeverity map[types.Severity]int) {
	data := make([]cwtypes.MetricDatum, 0, len(types.AllSeverities))
	for _, sev := range types.AllSeverities {
		data = append(data, countDatum(types.MetricRadarBucket, float64(bySeverity[sev]),
			dimension(types.DimCrop, string(crop)),
			dimension(types.DimSeverity, string(sev)),
		))
	}
	m.put(ctx, "failed to record radar metric", data...)
}

// RecordCacheLookup emits hit and miss counts for one baseline lookup.
func (m *CloudWatchMetrics) RecordCacheLookup(ctx context.Context, backend string, hits, misses int) {
	if hits == 0 && misses == 0 {
		return
	}
	m.put(ctx, "failed to record cache metric",
		countDatum(types.MetricBaselineCache, float64(hits), dimension(types.DimResult, "hit")),
		countDatum(types.MetricBaselineCache, float64(misses), dimension(types.DimResult, "miss")),
	)
}

// RecordReviewExport emits the number of pending_review reports exported for crop.
func (m *CloudWatchMetrics) RecordReviewExport(ctx context.Context, crop types.Crop, count int) {
	m.put(ctx, "failed to record review export metric", countDatum(types.MetricReviewExported, float64(count),
		dimension(types.DimCrop, string(crop)),
	))
}

func (m *CloudWatchMetrics) put(ctx context.Context, failure string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil && m.logger != nil {
		m.logger.Error(failure,
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func countDatum(name string, value float64, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
