package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error codes shared by the engine, the storage adapters, and the HTTP layer.
// Clients match on these strings, so they never change once shipped.
const (
	// Validation (400)
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidGeohash ErrorCode = "validation_invalid_geohash"
	ErrCodeValidationInvalidCrop    ErrorCode = "validation_invalid_crop"
	ErrCodeValidationInvalidSource  ErrorCode = "validation_invalid_source"
	ErrCodeValidationConfidence     ErrorCode = "validation_confidence_out_of_range"
	ErrCodeValidationWindow         ErrorCode = "validation_window_invalid"
	ErrCodeValidationBatchSize      ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidJSON    ErrorCode = "validation_invalid_json"
	ErrCodeValidationFailed         ErrorCode = "validation_failed"

	// Not Found (404)
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamCache      ErrorCode = "upstream_cache_unavailable"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamStorage    ErrorCode = "upstream_object_storage_unavailable"
)

// HTTPStatus maps a code to its status by prefix. Unknown prefixes are 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// AppError carries a stable code for clients and the wrapped cause for logs.
// Storage adapters, the engine and the handlers all return it.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// IsValidation reports whether the error is a client-side validation failure.
func (e *AppError) IsValidation() bool {
	return strings.HasPrefix(string(e.Code), "validation_")
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
