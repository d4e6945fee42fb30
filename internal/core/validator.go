package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cropradar/internal/types"
)

// Validator wraps go-playground/validator and registers the domain tags used
// by request DTOs. Field names in errors are the JSON names.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field errors and non-blocking warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether no field failed. Warnings do not invalidate.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator creates a Validator with the geohash5 tag registered.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("geohash5", validateGeohash5); err != nil {
		// Registration only fails on an empty tag or nil func.
		panic(fmt.Sprintf("registering geohash5 validator: %v", err))
	}
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns a *types.AppError whose code maps the
// first failure. All failures are listed under details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings validates s and returns every failure as a
// ValidationError instead of stopping at the first.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("struct validation failed unexpectedly", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationFailed),
			Message: "request could not be validated",
		}}}
	}

	result := ValidationResult{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fieldErrorCode(fe),
			Message: fieldMessage(fe),
		})
	}
	return result
}

func validateGeohash5(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return types.IsGeohash5(types.NormalizeGeohash(fl.Field().String()))
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldErrorCode refines tagToErrorCode for tags whose meaning depends on the
// field they are attached to.
func fieldErrorCode(fe validator.FieldError) string {
	switch fe.Field() {
	case "crop":
		if fe.Tag() != "required" {
			return string(types.ErrCodeValidationInvalidCrop)
		}
	case "source":
		if fe.Tag() != "required" {
			return string(types.ErrCodeValidationInvalidSource)
		}
	case "confidence", "min_confidence":
		return string(types.ErrCodeValidationConfidence)
	case "since_hours":
		return string(types.ErrCodeValidationWindow)
	case "geohashes":
		switch fe.Tag() {
		case "max":
			return string(types.ErrCodeValidationBatchSize)
		case "min":
			return string(types.ErrCodeValidationMissingField)
		}
	}
	return tagToErrorCode(fe.Tag())
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "geohash5":
		return string(types.ErrCodeValidationInvalidGeohash)
	case "gte", "lte":
		return string(types.ErrCodeValidationConfidence)
	default:
		return string(types.ErrCodeValidationFailed)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "geohash5":
		return fe.Field() + " must be a 5-character geohash"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
