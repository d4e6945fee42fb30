package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cropradar/internal/types"
)

// Report submissions are small; anything past this is rejected.
const maxRequestBodySize = 1 << 20

// APIErrorResponse is the error envelope every endpoint uses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

const unexpectedMessage = "an unexpected error occurred"

// JSON marshals data and writes it with status. A value that cannot be
// marshalled turns into a 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error renders err as an APIErrorResponse. AppErrors keep their code, message
// and details; anything else becomes an opaque 500. Wrapped causes are never
// written to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorDetail(err)
	detail.RequestID = types.GetRequestID(r.Context())
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

func errorDetail(err error) (int, ErrorDetail) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorDetail{
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: unexpectedMessage,
		}
	}
	return appErr.HTTPStatus(), ErrorDetail{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

// DecodeJSON strictly decodes a single JSON object from the request body into
// dst. Bodies over 1MB, unknown fields, type mismatches and trailing values
// all fail with validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func decodeError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return invalidJSON(fmt.Sprintf("request body must not exceed %dMB", maxRequestBodySize>>20), err)
	case errors.As(err, &syntax):
		return invalidJSON("malformed JSON in request body", err)
	case errors.As(err, &mismatch):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{"field": mismatch.Field, "expected": mismatch.Type.String()})
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return invalidJSON("unknown field in request body: "+field, err)
	case errors.Is(err, io.EOF):
		return invalidJSON("request body must not be empty", err)
	}
	return invalidJSON("invalid JSON in request body", err)
}

func invalidJSON(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, msg, err)
}
