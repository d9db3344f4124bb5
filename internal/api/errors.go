package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scout-api/internal/api/shared"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/export"
	"github.com/phrazzld/scout-api/internal/platform/scraper"
	"github.com/phrazzld/scout-api/internal/service"
	"github.com/phrazzld/scout-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrPresetNotFound),
		errors.Is(err, service.ErrNoResults),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrTaskRunning),
		store.IsDuplicateError(err):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	// The remote worker rejected or never received the submission
	case errors.Is(err, scraper.ErrSubmitFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrPresetNotFound):
		return "Criteria preset not found"

	case errors.Is(err, service.ErrNoResults):
		return "No results to export"

	case errors.Is(err, service.ErrTaskRunning):
		return "Task is already running"

	case errors.Is(err, export.ErrUnsupportedFormat):
		return "Unsupported export format"

	case errors.As(err, &validationErr):
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)

	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidEntity):
		return invalidInputMessage(err)

	case errors.Is(err, scraper.ErrSubmitFailed):
		return "Scraping worker rejected the task"

	default:
		return "An unexpected error occurred"
	}
}

// invalidInputMessage exposes the domain validation reason, which is a fixed
// string owned by this codebase and safe to return.
func invalidInputMessage(err error) string {
	for _, known := range []error{
		domain.ErrEmptyTargetAccount,
		domain.ErrTargetCountOutRange,
		domain.ErrBioAgentsOutRange,
		domain.ErrBatchSizeOutRange,
		domain.ErrEmptyPresetName,
		domain.ErrEmptyPresetCriteria,
	} {
		if errors.Is(err, known) {
			return "Invalid input: " + known.Error()
		}
	}
	return "Invalid input"
}

// HandleAPIError writes the mapped status code and a sanitized message for
// err. fallbackMessage, when set, replaces the generic 500 message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallbackMessage != "" {
		message = fallbackMessage
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// HandleValidationError writes a 400 response for request validation failures.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	if errors.Is(err, errEmptyPresetUpdate) {
		return "Validation error: " + err.Error()
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
