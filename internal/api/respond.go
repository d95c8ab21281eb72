// Package api holds the JSON envelope and the single place where
// application errors become HTTP responses.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ayush/todo-auth/internal/apperr"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Success bool     `json:"success"`
	Message *string  `json:"message"`
	Data    any      `json:"data"`
	Error   *string  `json:"error"`
	Errors  []string `json:"errors"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: &message, Data: data})
}

// Fail writes an error envelope without going through error classification.
func Fail(w http.ResponseWriter, status int, msg string, details ...string) {
	WriteJSON(w, status, Envelope{Error: &msg, Errors: details})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindDuplicate:
		return http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates err into a status code and envelope. Unclassified
// errors are logged in full and reported with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindUnexpected {
		slog.ErrorContext(r.Context(), "unexpected error",
			"method", r.Method, "path", r.URL.Path, "err", err)
		Fail(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	if ae.Err != nil {
		slog.DebugContext(r.Context(), "request failed", "kind", ae.Kind, "err", ae.Err)
	}
	Fail(w, StatusFor(ae.Kind), ae.Message, ae.Details...)
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

// DecodeJSON reads a JSON request body of at most MaxBodyBytes into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.BadRequest("Request body too large")
		case errors.Is(err, io.EOF):
			return apperr.BadRequest("Request body is required")
		}
		return apperr.BadRequest("Invalid JSON format")
	}
	return nil
}
