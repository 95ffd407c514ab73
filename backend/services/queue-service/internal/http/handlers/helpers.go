package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/http/middleware"
	"chargequeue/backend/services/queue-service/internal/service"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	requesterID, ok := middleware.RequesterIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return requesterID, ok
}

func stationFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	stationID := strings.TrimSpace(r.URL.Query().Get("station_id"))
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return "", false
	}
	return stationID, true
}

// statusOf maps a service failure kind onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrResourceUnavailable),
		errors.Is(err, service.ErrQueueFull),
		errors.Is(err, service.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, service.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the status of err. Internal details of storage failures
// stay in the log.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, status, "temporarily unavailable")
	default:
		writeError(w, status, err.Error())
	}
}
