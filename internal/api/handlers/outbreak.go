// Package handlers contains the HTTP handlers of the crop radar API.
//
// Every aggregate leaving these handlers passes through the privacy gate, so
// breakdowns below the minimum group size never reach a client.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cropradar/internal/core"
	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// OutbreakReader computes the single-cell summary.
type OutbreakReader interface {
	GetOutbreak(ctx context.Context, q types.OutbreakQuery) (*types.OutbreakResponse, error)
}

// RadarReader computes the multi-cell overlay.
type RadarReader interface {
	GetRadar(ctx context.Context, q types.RadarQuery) (*types.RadarResponse, error)
}

// ReportSubmitter ingests one observation.
type ReportSubmitter interface {
	Submit(ctx context.Context, sub types.ReportSubmission) (*types.SubmissionResult, error)
}

// OutbreakHandler maps the outbreak endpoints onto the engine services.
type OutbreakHandler struct {
	outbreaks OutbreakReader
	radar     RadarReader
	reports   ReportSubmitter
	gate      outbreak.PrivacyGate
	validator *core.Validator
	logger    *slog.Logger
}

// NewOutbreakHandler creates an OutbreakHandler. A nil validator gets a fresh
// core.Validator.
func NewOutbreakHandler(
	outbreaks OutbreakReader,
	radar RadarReader,
	reports ReportSubmitter,
	gate outbreak.PrivacyGate,
	val *core.Validator,
	logger *slog.Logger,
) *OutbreakHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &OutbreakHandler{
		outbreaks: outbreaks,
		radar:     radar,
		reports:   reports,
		gate:      gate,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the outbreak endpoints onto the /v1 router.
func (h *OutbreakHandler) RegisterRoutes(r chi.Router) {
	r.Get("/outbreaks/{geohash5}", h.HandleGetOutbreak)
	r.Post("/outbreaks/radar", h.HandleRadar)
	r.Post("/reports", h.HandleSubmitReport)
}

// HandleGetOutbreak handles GET /v1/outbreaks/{geohash5}?crop=&since_hours=&min_confidence=.
func (h *OutbreakHandler) HandleGetOutbreak(w http.ResponseWriter, r *http.Request) {
	q, err := parseOutbreakQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.outbreaks.GetOutbreak(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "outbreak aggregation failed",
			"geohash5", q.Geohash5,
			"crop", string(q.Crop),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, h.gate.RedactOutbreak(resp))
}

// HandleRadar handles POST /v1/outbreaks/radar.
func (h *OutbreakHandler) HandleRadar(w http.ResponseWriter, r *http.Request) {
	var q types.RadarQuery
	if err := core.DecodeJSON(w, r, &q); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.radar.GetRadar(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "radar assembly failed",
			"cells", len(q.Geohashes),
			"crop", string(q.Crop),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, h.gate.RedactRadar(resp))
}

// HandleSubmitReport handles POST /v1/reports and answers 201 {id, status}.
func (h *OutbreakHandler) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var sub types.ReportSubmission
	if err := core.DecodeJSON(w, r, &sub); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(sub); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.reports.Submit(r.Context(), sub)
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || !appErr.IsValidation() {
			h.logger.ErrorContext(r.Context(), "report submission failed",
				"crop", string(sub.Crop),
				"source", string(sub.Source),
				"error", err,
			)
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, result)
}

func parseOutbreakQuery(r *http.Request) (types.OutbreakQuery, error) {
	params := r.URL.Query()
	q := types.OutbreakQuery{
		Geohash5: chi.URLParam(r, "geohash5"),
		Crop:     types.Crop(params.Get("crop")),
	}

	if raw := params.Get("since_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationWindow, "since_hours must be an integer", err)
		}
		q.SinceHours = hours
	}

	if raw := params.Get("min_confidence"); raw != "" {
		conf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationConfidence, "min_confidence must be a number", err)
		}
		q.MinConfidence = &conf
	}

	return q, nil
}
