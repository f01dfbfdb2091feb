package utils

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// StatusFor maps a telemetry error onto an HTTP status and a client-safe
// message. Storage and sensor details stay in the logs.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidWindowSelector):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrEmptyWindow):
		return http.StatusNotFound, "no data in window"
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "data temporarily unavailable"
	case errors.Is(err, types.ErrSensorUnavailable):
		return http.StatusServiceUnavailable, "sensor unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteDomainError writes the error response for err and logs server-side
// failures.
func WriteDomainError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", "status", status, "error", err)
	}
	WriteError(w, status, msg)
}
