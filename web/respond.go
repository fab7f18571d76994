// Package web provides the shared HTTP boundary helpers: JSON response
// writing, error-body rendering, and request middleware common to the
// catalog and federation services.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/josuabad/TuGranjita/errors"
)

// ErrorKey selects the single string field naming the problem in error
// bodies: the CRM and federation surfaces use "detail", the IoT surface
// uses "error".
type ErrorKey string

// Supported error body keys
const (
	DetailKey ErrorKey = "detail"
	ErrorsKey ErrorKey = "error"
)

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but log
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError maps err to its HTTP status and writes the one-field error
// body. The status mapping happens here and nowhere else.
func WriteError(w http.ResponseWriter, key ErrorKey, err error) {
	WriteJSON(w, errors.HTTPStatus(err), map[string]string{
		string(key): errors.Detail(err),
	})
}
