package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricReportSubmitted = "ReportSubmitted"
	MetricRadarBucket     = "RadarBucket"
	MetricBaselineCache   = "BaselineCacheLookup"
	MetricReviewExported  = "ReviewReportsExported"

	// Dimension Keys
	DimSource   = "Source"
	DimStatus   = "Status"
	DimCrop     = "Crop"
	DimSeverity = "Severity"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "CropRadar"
)
