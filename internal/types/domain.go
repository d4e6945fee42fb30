package types

import "time"

// Evidence references artifacts supporting a report.
type Evidence struct {
	PhotoHash string `json:"photo_hash,omitempty"`
	TicketID  string `json:"ticket_id,omitempty"`
}

// Contact attributes a partner-sourced report to a co-op or shop.
type Contact struct {
	CoOpID string `json:"co_op_id,omitempty"`
	ShopID string `json:"shop_id,omitempty"`
}

// OutbreakReport is an immutable, append-only disease observation.
//
// Geohash5 is deliberately coarse (roughly 4-5 km cells) so individual farms
// cannot be identified. Confidence is nil for manual and partner reports.
// Status is the acceptance outcome persisted alongside the row; once inserted
// a report is never updated or deleted.
type OutbreakReport struct {
	ID         string       `json:"id"`
	Geohash5   string       `json:"geohash5"`
	Crop       Crop         `json:"crop"`
	Label      string       `json:"label"`
	Confidence *float64     `json:"confidence,omitempty"`
	ObservedAt time.Time    `json:"observed_at"`
	Source     ReportSource `json:"source"`
	Evidence   *Evidence    `json:"evidence,omitempty"`
	Contact    *Contact     `json:"contact,omitempty"`
	DeviceID   string       `json:"device_id,omitempty"`
	FieldID    string       `json:"field_id,omitempty"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReportSubmission is a candidate report as received from a client: an
// OutbreakReport without its identifier or derived status. The validate tags
// only check the shape of values that are present; required fields are
// enforced by the acceptance policy.
type ReportSubmission struct {
	Source     ReportSource `json:"source" validate:"omitempty,oneof=scan manual partner"`
	Crop       Crop         `json:"crop" validate:"omitempty,oneof=rice durian"`
	Label      string       `json:"label" validate:"max=120"`
	Confidence *float64     `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Geohash5   string       `json:"geohash5" validate:"omitempty,geohash5"`
	ObservedAt time.Time    `json:"observed_at"`
	Evidence   *Evidence    `json:"evidence,omitempty"`
	Contact    *Contact     `json:"contact,omitempty"`
	DeviceID   string       `json:"device_id,omitempty" validate:"max=128"`
	FieldID    string       `json:"field_id,omitempty" validate:"max=128"`
}

// SubmissionResult is returned to the submitter after ingestion.
type SubmissionResult struct {
	ID     string       `json:"id"`
	Status ReportStatus `json:"status"`
}

// DailyCount is the number of qualifying reports observed on one UTC day.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// LabelCount is the frequency of one disease or pest label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CellCount is the number of qualifying reports in one cell.
type CellCount struct {
	Geohash5 string `json:"geohash5"`
	Count    int    `json:"count"`
}

// ResponseConfidence carries the privacy and filtering signals of an aggregate.
type ResponseConfidence struct {
	KAnonymity    bool    `json:"k_anonymity"`
	MinConfidence float64 `json:"min_confidence"`
}

// OutbreakResponse is the computed single-cell summary. It is never persisted.
type OutbreakResponse struct {
	Geohash5     string             `json:"geohash5"`
	Crop         Crop               `json:"crop"`
	WindowHours  int                `json:"window_hours"`
	TotalReports int                `json:"total_reports"`
	UniqueFields *int               `json:"unique_fields,omitempty"`
	TopLabels    []LabelCount       `json:"top_labels"`
	Trend        []DailyCount       `json:"trend"`
	Confidence   ResponseConfidence `json:"confidence"`
	LastUpdated  time.Time          `json:"last_updated"`
}

// BaselineStat is the historical distribution of daily counts for a cell.
type BaselineStat struct {
	Geohash5 string  `json:"geohash5"`
	Median   float64 `json:"median"`
	Sigma    float64 `json:"sigma"`
}

// RadarBucket is one cell of the radar overlay.
// Count is a pointer so the render boundary can suppress it below K.
type RadarBucket struct {
	Geohash5   string   `json:"geohash5"`
	Count      *int     `json:"count"`
	Severity   Severity `json:"severity"`
	KAnonymity bool     `json:"k_anonymity"`
}

// RadarResponse is the multi-cell overlay with its display legend.
type RadarResponse struct {
	Buckets    []RadarBucket       `json:"buckets"`
	Legend     map[Severity]string `json:"legend"`
	SinceHours int                 `json:"since_hours"`
}

// OutbreakQuery is the single-cell request shape.
type OutbreakQuery struct {
	Geohash5      string   `json:"geohash5" validate:"required,geohash5"`
	Crop          Crop     `json:"crop" validate:"required,oneof=rice durian"`
	SinceHours    int      `json:"since_hours,omitempty" validate:"omitempty,min=1,max=720"`
	MinConfidence *float64 `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// RadarQuery is the multi-cell request shape.
type RadarQuery struct {
	Geohashes     []string `json:"geohashes" validate:"required,min=1,max=200,dive,geohash5"`
	Crop          Crop     `json:"crop" validate:"required,oneof=rice durian"`
	SinceHours    int      `json:"since_hours,omitempty" validate:"omitempty,min=1,max=720"`
	MinConfidence *float64 `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ReportEvent is the message published after a report is accepted.
type ReportEvent struct {
	ReportID   string       `json:"report_id"`
	Geohash5   string       `json:"geohash5"`
	Crop       Crop         `json:"crop"`
	Label      string       `json:"label"`
	Source     ReportSource `json:"source"`
	Status     ReportStatus `json:"status"`
	ObservedAt time.Time    `json:"observed_at"`
	AcceptedAt time.Time    `json:"accepted_at"`
}
