package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request: bad request",
		},
		{
			name:     "error with type, code, and message",
			err:      &APIError{Type: ErrorTypeDataUnavailable, Code: ErrorCodeInsufficientHistory, Message: "not enough closes"},
			expected: "data_unavailable (insufficient_history): not enough closes",
		},
		{
			name:     "error with cause",
			err:      ErrDelivery("webhook failed").WithCause(errors.New("connection reset")),
			expected: "delivery: webhook failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{
			name:     "invalid request",
			err:      &APIError{Type: ErrorTypeInvalidRequest},
			expected: http.StatusBadRequest,
		},
		{
			name:     "authentication error",
			err:      &APIError{Type: ErrorTypeAuthentication},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "overloaded error",
			err:      &APIError{Type: ErrorTypeOverloaded},
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "data unavailable",
			err:      &APIError{Type: ErrorTypeDataUnavailable},
			expected: http.StatusBadGateway,
		},
		{
			name:     "delivery error",
			err:      &APIError{Type: ErrorTypeDelivery},
			expected: http.StatusBadGateway,
		},
		{
			name:     "server error",
			err:      &APIError{Type: ErrorTypeServer},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "unknown error type",
			err:      &APIError{Type: ErrorType("unknown")},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "explicit status code",
			err:      &APIError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusConflict},
			expected: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func(string) *APIError
		expectedType ErrorType
		expectedCode ErrorCode
	}{
		{"ErrAuthentication", ErrAuthentication, ErrorTypeAuthentication, ErrorCodeInvalidSignature},
		{"ErrInvalidRequest", ErrInvalidRequest, ErrorTypeInvalidRequest, ""},
		{"ErrDataUnavailable", ErrDataUnavailable, ErrorTypeDataUnavailable, ""},
		{"ErrDelivery", ErrDelivery, ErrorTypeDelivery, ""},
		{"ErrOverloaded", ErrOverloaded, ErrorTypeOverloaded, ""},
		{"ErrServer", ErrServer, ErrorTypeServer, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("message")
			if err.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", err.Type, tt.expectedType)
			}
			if err.Code != tt.expectedCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.expectedCode)
			}
			if err.Message != "message" {
				t.Errorf("Message = %q, want %q", err.Message, "message")
			}
		})
	}
}

func TestIsType(t *testing.T) {
	cause := errors.New("status 503")
	err := fmt.Errorf("fetch snapshot: %w", ErrDataUnavailable("chart unavailable").WithCause(cause))

	if !IsType(err, ErrorTypeDataUnavailable) {
		t.Error("expected wrapped error to match data_unavailable")
	}
	if IsType(err, ErrorTypeDelivery) {
		t.Error("did not expect wrapped error to match delivery")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if IsType(cause, ErrorTypeDataUnavailable) {
		t.Error("plain error must not match any type")
	}
}

func TestToAPIError(t *testing.T) {
	apiErr := ErrOverloaded("busy")
	if got := ToAPIError(fmt.Errorf("wrapped: %w", apiErr)); got != apiErr {
		t.Errorf("ToAPIError() = %v, want original error", got)
	}

	got := ToAPIError(errors.New("boom"))
	if got.Type != ErrorTypeServer || got.Message != "boom" {
		t.Errorf("ToAPIError() = %+v, want server error with message boom", got)
	}
}
