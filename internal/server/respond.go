package server

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// WriteError maps err to its HTTP status and writes {"error": message}.
// Server errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := domain.ToAPIError(err)
	msg := apiErr.Message
	if apiErr.Type == domain.ErrorTypeServer {
		msg = "Internal server error"
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		_ = WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: "Request body too large"})
		return
	}

	_ = WriteJSON(w, apiErr.HTTPStatusCode(), ErrorBody{Error: msg})
}
