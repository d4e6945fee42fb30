package types

// Crop identifies the crop a report was filed against.
type Crop string

const (
	CropRice   Crop = "rice"
	CropDurian Crop = "durian"
)

// AllCrops lists every supported crop in a stable order.
var AllCrops = []Crop{CropRice, CropDurian}

// IsValid reports whether c is a supported crop.
func (c Crop) IsValid() bool {
	switch c {
	case CropRice, CropDurian:
		return true
	}
	return false
}

// ReportSource describes how an observation entered the system. It selects
// the acceptance policy applied to the report.
type ReportSource string

const (
	SourceScan    ReportSource = "scan"
	SourceManual  ReportSource = "manual"
	SourcePartner ReportSource = "partner"
)

// IsValid reports whether s is a known report source.
func (s ReportSource) IsValid() bool {
	switch s {
	case SourceScan, SourceManual, SourcePartner:
		return true
	}
	return false
}

// ReportStatus is the acceptance outcome returned to the submitter.
type ReportStatus string

const (
	// StatusQueued reports count toward aggregates.
	StatusQueued ReportStatus = "queued"
	// StatusPendingReview reports are retained for audit and training but are
	// excluded from every aggregate.
	StatusPendingReview ReportStatus = "pending_review"
)

// Severity is the anomaly band of a radar cell relative to its own baseline.
type Severity string

const (
	SeverityStable  Severity = "stable"
	SeverityRising  Severity = "rising"
	SeveritySurging Severity = "surging"
)

// AllSeverities lists the bands from least to most severe.
var AllSeverities = []Severity{SeverityStable, SeverityRising, SeveritySurging}
