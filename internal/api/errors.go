package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes. Command failures use the gpio package's codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// commandStatus maps a command pipeline error code to an HTTP status.
func commandStatus(code string) int {
	switch code {
	case gpio.ErrCodeNotConfigured:
		return http.StatusNotFound
	case gpio.ErrCodeNotAnOutput:
		return http.StatusConflict
	case gpio.ErrCodeUnrecognized, gpio.ErrCodeMalformedFields, gpio.ErrCodeInvalidField:
		return http.StatusUnprocessableEntity
	case gpio.ErrCodeEndpointUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeCommandError writes a command failure using the same codes as MQTT acks.
func writeCommandError(w http.ResponseWriter, err error) {
	code := gpio.ErrorCode(err)
	writeError(w, commandStatus(code), code, err.Error())
}
