// Package domain provides the interaction wire types and canonical error types for the gateway.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a gateway error.
type ErrorType string

const (
	// ErrorTypeAuthentication indicates a missing or invalid request signature.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeInvalidRequest indicates an unrecognized interaction type or command name.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeDataUnavailable indicates the market data provider could not produce a snapshot.
	ErrorTypeDataUnavailable ErrorType = "data_unavailable"

	// ErrorTypeDelivery indicates a follow-up webhook could not be delivered.
	ErrorTypeDelivery ErrorType = "delivery"

	// ErrorTypeOverloaded indicates the background worker pool cannot accept more work.
	ErrorTypeOverloaded ErrorType = "overloaded"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeInvalidSignature    ErrorCode = "invalid_signature"
	ErrorCodeUnknownCommand      ErrorCode = "unknown_command"
	ErrorCodeMalformedBody       ErrorCode = "malformed_body"
	ErrorCodeInsufficientHistory ErrorCode = "insufficient_history"
	ErrorCodeMalformedRatePage   ErrorCode = "malformed_rate_page"
	ErrorCodeUpstreamStatus      ErrorCode = "upstream_status"
)

// APIError represents a canonical gateway error. The interaction handler maps it to
// an HTTP status; background tasks turn it into a user-visible follow-up message.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error { return e.cause }

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	case ErrorTypeDataUnavailable, ErrorTypeDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithCause records the error that triggered this one.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message).
		WithCode(ErrorCodeInvalidSignature)
}

// ErrInvalidRequest creates a protocol error for requests the gateway does not understand.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrDataUnavailable creates a market data error.
func ErrDataUnavailable(message string) *APIError {
	return NewAPIError(ErrorTypeDataUnavailable, message)
}

// ErrDelivery creates a follow-up delivery error.
func ErrDelivery(message string) *APIError {
	return NewAPIError(ErrorTypeDelivery, message)
}

// ErrOverloaded creates an overloaded error.
func ErrOverloaded(message string) *APIError {
	return NewAPIError(ErrorTypeOverloaded, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// IsType reports whether err (or anything it wraps) is an APIError of the given type.
func IsType(err error, t ErrorType) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == t
	}
	return false
}

// ToAPIError converts any error to an APIError, wrapping unknown errors as server errors.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServer(err.Error())
}
