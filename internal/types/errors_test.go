package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	err := NewAppError(ErrCodeValidationInvalidGeohash, "geohash5 must be 5 characters", nil)

	want := "validation_invalid_geohash: geohash5 must be 5 characters"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalDB, "query failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if NewAppError(ErrCodeInternalDB, "query failed", nil).Unwrap() != nil {
		t.Error("Unwrap() should be nil without a cause")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewAppError(ErrCodeValidationBatchSize, "too many cells", nil))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract *AppError")
	}
	if appErr.Code != ErrCodeValidationBatchSize {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeValidationBatchSize)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationBatchSize, http.StatusBadRequest},
		{ErrCodeNotFoundRoute, http.StatusNotFound},
		{ErrCodeUpstreamCache, http.StatusBadGateway},
		{ErrCodeUpstreamQueue, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := NewAppError(tt.code, "", nil).HTTPStatus(); got != tt.want {
				t.Errorf("AppError.HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorIsValidation(t *testing.T) {
	if !NewAppError(ErrCodeValidationConfidence, "", nil).IsValidation() {
		t.Error("validation code should report IsValidation")
	}
	if NewAppError(ErrCodeInternalUnexpected, "", nil).IsValidation() {
		t.Error("internal code should not report IsValidation")
	}
}
