package outbreak

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"cropradar/internal/types"
)

// Acceptor validates incoming observations, decides their acceptance status,
// and appends them to the repository.
type Acceptor struct {
	repo       ReportRepository
	publisher  EventPublisher
	metrics    Metrics
	thresholds Thresholds
	newID      IDGenerator
	clock      types.Clock
	logger     *slog.Logger
}

// AcceptorOption customizes an Acceptor.
type AcceptorOption func(*Acceptor)

// WithEventPublisher announces every accepted report through p.
func WithEventPublisher(p EventPublisher) AcceptorOption {
	return func(a *Acceptor) { a.publisher = p }
}

// WithAcceptorMetrics records submission outcomes through m.
func WithAcceptorMetrics(m Metrics) AcceptorOption {
	return func(a *Acceptor) { a.metrics = m }
}

// WithIDGenerator replaces the UUID-based report identifier source.
func WithIDGenerator(gen IDGenerator) AcceptorOption {
	return func(a *Acceptor) { a.newID = gen }
}

// WithAcceptorClock overrides the clock used for acceptance timestamps.
func WithAcceptorClock(c types.Clock) AcceptorOption {
	return func(a *Acceptor) { a.clock = c }
}

// NewAcceptor creates an Acceptor writing through repo.
func NewAcceptor(repo ReportRepository, thresholds Thresholds, logger *slog.Logger, opts ...AcceptorOption) *Acceptor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Acceptor{
		repo:       repo,
		metrics:    NoopMetrics{},
		thresholds: thresholds,
		newID:      func() string { return uuid.New().String() },
		clock:      types.RealClock{},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Submit ingests one observation.
//
// Missing required fields fail before any repository call. Otherwise the
// report is always persisted exactly once; low-confidence scans and manual
// reports without a photo come back as pending_review. Low-confidence scans
// are kept out of aggregates by the storage confidence filter.
func (a *Acceptor) Submit(ctx context.Context, sub types.ReportSubmission) (*types.SubmissionResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	status := a.Decide(sub)
	now := a.clock.Now()

	report := &types.OutbreakReport{
		ID:         a.newID(),
		Geohash5:   types.NormalizeGeohash(sub.Geohash5),
		Crop:       sub.Crop,
		Label:      strings.TrimSpace(sub.Label),
		Confidence: sub.Confidence,
		ObservedAt: sub.ObservedAt.UTC(),
		Source:     sub.Source,
		Evidence:   sub.Evidence,
		Contact:    sub.Contact,
		DeviceID:   sub.DeviceID,
		FieldID:    sub.FieldID,
		Status:     status,
		CreatedAt:  now,
	}

	id, err := a.repo.InsertReport(ctx, report)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = report.ID
	}

	a.metrics.RecordSubmission(ctx, report.Source, status)

	if a.publisher != nil {
		event := types.ReportEvent{
			ReportID:   id,
			Geohash5:   report.Geohash5,
			Crop:       report.Crop,
			Label:      report.Label,
			Source:     report.Source,
			Status:     status,
			ObservedAt: report.ObservedAt,
			AcceptedAt: now,
		}
		// The report is already stored; a lost event must not fail the submission.
		if err := a.publisher.PublishReportAccepted(ctx, event); err != nil {
			a.logger.WarnContext(ctx, "failed to publish report event",
				"report_id", id,
				"status", string(status),
				"error", err,
			)
		}
	}

	return &types.SubmissionResult{ID: id, Status: status}, nil
}

// Decide returns the acceptance status for a submission. A scan without a
// confidence is treated as confidence 0.
func (a *Acceptor) Decide(sub types.ReportSubmission) types.ReportStatus {
	switch sub.Source {
	case types.SourceScan:
		if sub.Confidence == nil || *sub.Confidence < a.thresholds.MinConfidence {
			return types.StatusPendingReview
		}
	case types.SourceManual:
		if sub.Evidence == nil || strings.TrimSpace(sub.Evidence.PhotoHash) == "" {
			return types.StatusPendingReview
		}
	}
	return types.StatusQueued
}

// validateSubmission checks only the presence of required fields.
func validateSubmission(sub types.ReportSubmission) error {
	var missing []string
	if sub.Crop == "" {
		missing = append(missing, "crop")
	}
	if strings.TrimSpace(sub.Label) == "" {
		missing = append(missing, "label")
	}
	if strings.TrimSpace(sub.Geohash5) == "" {
		missing = append(missing, "geohash5")
	}
	if sub.ObservedAt.IsZero() {
		missing = append(missing, "observed_at")
	}
	if sub.Source == "" {
		missing = append(missing, "source")
	}
	if len(missing) == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"missing required fields: "+strings.Join(missing, ", "),
		nil,
		map[string]any{"fields": missing},
	)
}
