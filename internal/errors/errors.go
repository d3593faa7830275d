// Package errors provides typed errors for the dashboard engine.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common error cases.
var (
	// ErrTransport indicates the backend could not be reached.
	ErrTransport = errors.New("transport failure")

	// ErrUnauthorized indicates the credential is missing or was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates input was rejected before any network call.
	ErrValidation = errors.New("validation error")

	// ErrRejected indicates the backend refused a business operation.
	ErrRejected = errors.New("rejected by backend")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a resource conflict (e.g., duplicate).
	ErrConflict = errors.New("resource conflict")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrRateLimit indicates too many requests.
	ErrRateLimit = errors.New("rate limit exceeded")
)

// AppError is a structured application error.
type AppError struct {
	// Kind is the error kind (sentinel error).
	Kind error
	// Message is the user-facing error message.
	Message string
	// Details contains additional error details.
	Details map[string]any
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the error kind.
func (e *AppError) Unwrap() error {
	return e.Kind
}

// Is checks if this error matches the target.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// New creates a new AppError.
func New(kind error, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(kind error, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// WithDetails adds details to an AppError.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return &AppError{Kind: ErrValidation, Message: message}
}

// ValidationField creates a validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Kind:    ErrValidation,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

// Rejected creates a business rejection error carrying the backend message.
func Rejected(message string) *AppError {
	return &AppError{Kind: ErrRejected, Message: message}
}

// Transport creates a transport error.
func Transport(message string, cause error) *AppError {
	return &AppError{Kind: ErrTransport, Message: message, Cause: cause}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{Kind: ErrUnauthorized, Message: message}
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// Internal creates an internal error.
func Internal(message string, cause error) *AppError {
	return &AppError{Kind: ErrInternal, Message: message, Cause: cause}
}

// FromStatus maps a backend response status to an error kind.
// Statuses in the 2xx range map to nil.
func FromStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= 400 && status < 500:
		return ErrRejected
	default:
		return ErrTransport
	}
}

// IsUnauthorized checks if an error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRejected checks if an error is a business rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsTransport checks if an error is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HTTPStatus returns the status code the local API answers with for an error.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
