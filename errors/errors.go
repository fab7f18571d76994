// Package errors provides standardized error handling patterns for TuGranjita
// services. It includes error classification, standard error variables, and
// helper functions for consistent error wrapping across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents the classification of errors for handling purposes.
// Every request-terminal failure belongs to exactly one class, and the class
// is mapped to an HTTP status only at the boundary.
type ErrorClass int

const (
	// ErrorBadRequest represents errors due to malformed or out-of-range
	// caller parameters, detected before any data access
	ErrorBadRequest ErrorClass = iota
	// ErrorNotFound represents lookups that legitimately matched nothing
	ErrorNotFound
	// ErrorUpstream represents failures reaching a dependent source
	ErrorUpstream
	// ErrorIntegrity represents local data that is unreadable, unparsable,
	// or fails schema conformance
	ErrorIntegrity
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorBadRequest:
		return "bad_request"
	case ErrorNotFound:
		return "not_found"
	case ErrorUpstream:
		return "upstream"
	case ErrorIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Parameter errors
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrRangeInverted    = errors.New("range lower bound after upper bound")

	// Lookup errors
	ErrRecordNotFound = errors.New("record not found")

	// Upstream errors
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamStatus      = errors.New("upstream returned non-success status")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrUpstreamDecode      = errors.New("upstream body not decodable")

	// Data integrity errors
	ErrStoreUnreadable = errors.New("backing store unreadable")
	ErrStoreMalformed  = errors.New("backing store malformed")
	ErrSchemaViolation = errors.New("record violates schema")
	ErrBadTimestamp    = errors.New("record timestamp unparsable")
)

// ClassifiedError wraps an error with its classification and a client-safe
// detail message. The detail is what ends up in an error response body; the
// full Error() string carries component/operation context for logs.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Detail    string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", ce.Component, ce.Operation, ce.Detail, ce.Err)
	}
	return fmt.Sprintf("%s.%s: %s", ce.Component, ce.Operation, ce.Detail)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// newClassified creates a new classified error.
// This is an internal helper - use the per-class constructors instead.
func newClassified(class ErrorClass, err error, component, operation, detail string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Detail:    detail,
		Component: component,
		Operation: operation,
	}
}

// BadRequestf creates a bad-request error with a formatted detail message
func BadRequestf(component, operation, format string, args ...any) error {
	return newClassified(ErrorBadRequest, ErrInvalidParameter, component, operation,
		fmt.Sprintf(format, args...))
}

// NotFoundf creates a not-found error with a formatted detail message
func NotFoundf(component, operation, format string, args ...any) error {
	return newClassified(ErrorNotFound, ErrRecordNotFound, component, operation,
		fmt.Sprintf(format, args...))
}

// Upstreamf creates an upstream-failure error with a formatted detail message
func Upstreamf(component, operation, format string, args ...any) error {
	return newClassified(ErrorUpstream, ErrUpstreamUnreachable, component, operation,
		fmt.Sprintf(format, args...))
}

// Integrityf creates a data-integrity error with a formatted detail message
func Integrityf(component, operation, format string, args ...any) error {
	return newClassified(ErrorIntegrity, ErrSchemaViolation, component, operation,
		fmt.Sprintf(format, args...))
}

// WrapBadRequest wraps an error as a bad request with context
func WrapBadRequest(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorBadRequest, err, component, operation, detail)
}

// WrapNotFound wraps an error as not found with context
func WrapNotFound(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorNotFound, err, component, operation, detail)
}

// WrapUpstream wraps an error as an upstream failure with context
func WrapUpstream(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorUpstream, err, component, operation, detail)
}

// WrapIntegrity wraps an error as a data-integrity failure with context
func WrapIntegrity(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorIntegrity, err, component, operation, detail)
}

// IsBadRequest checks if an error is a caller-parameter error
func IsBadRequest(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorBadRequest
	}

	return errors.Is(err, ErrInvalidParameter) || errors.Is(err, ErrRangeInverted)
}

// IsNotFound checks if an error is a legitimate miss
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorNotFound
	}

	return errors.Is(err, ErrRecordNotFound)
}

// IsUpstream checks if an error is a dependency failure
func IsUpstream(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorUpstream
	}

	return errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrUpstreamStatus) ||
		errors.Is(err, ErrUpstreamUnreachable) ||
		errors.Is(err, ErrUpstreamDecode) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsIntegrity checks if an error is a local data-integrity failure
func IsIntegrity(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorIntegrity
	}

	return errors.Is(err, ErrStoreUnreadable) ||
		errors.Is(err, ErrStoreMalformed) ||
		errors.Is(err, ErrSchemaViolation) ||
		errors.Is(err, ErrBadTimestamp)
}

// Classify returns the error class for an error. Unknown errors default to
// integrity so that unexpected failures surface as 500, never as a silently
// swallowed response.
func Classify(err error) ErrorClass {
	if IsBadRequest(err) {
		return ErrorBadRequest
	}
	if IsNotFound(err) {
		return ErrorNotFound
	}
	if IsUpstream(err) {
		return ErrorUpstream
	}
	return ErrorIntegrity
}

// HTTPStatus maps an error to the HTTP status code used at the boundary
func HTTPStatus(err error) int {
	switch Classify(err) {
	case ErrorBadRequest:
		return http.StatusBadRequest
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the client-safe message for an error. For classified errors
// this is the detail set at creation; anything else falls back to Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Detail != "" {
		return ce.Detail
	}
	return err.Error()
}
