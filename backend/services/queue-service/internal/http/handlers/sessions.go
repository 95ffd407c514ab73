package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/models"
	"chargequeue/backend/services/queue-service/internal/service"
)

type sessionRequest struct {
	StationID          string  `json:"station_id"`
	Reason             string  `json:"reason,omitempty"`
	TargetBatteryLevel float64 `json:"target_battery_level,omitempty"`
}

type sessionStatusResponse struct {
	Session  *models.ChargingSession `json:"session"`
	Progress models.Progress         `json:"progress"`
	Cost     models.CostBreakdown    `json:"cost"`
}

// SessionHandlers serves the session endpoints.
type SessionHandlers struct {
	sessions SessionAPI
	history  SessionHistory
	logger   *zap.Logger
}

// NewSessionHandlers returns handler.
func NewSessionHandlers(sessions SessionAPI, history SessionHistory, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, history: history, logger: logger}
}

func (h *SessionHandlers) parse(w http.ResponseWriter, r *http.Request) (string, sessionRequest, bool) {
	requesterID, ok := requester(w, r)
	if !ok {
		return "", sessionRequest{}, false
	}
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return "", sessionRequest{}, false
	}
	req.StationID = strings.TrimSpace(req.StationID)
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return "", sessionRequest{}, false
	}
	return requesterID, req, true
}

// Stop handles POST /sessions/stop.
func (h *SessionHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = service.StopReasonRequested
	}
	summary, err := h.sessions.Stop(r.Context(), requesterID, req.StationID, reason)
	if err != nil {
		writeServiceError(w, h.logger, "stop session", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Pause handles POST /sessions/pause.
func (h *SessionHandlers) Pause(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	paused, err := h.sessions.Pause(r.Context(), requesterID, req.StationID)
	if err != nil {
		writeServiceError(w, h.logger, "pause session", err)
		return
	}
	if !paused {
		writeError(w, http.StatusConflict, "session is not active")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// Resume handles POST /sessions/resume.
func (h *SessionHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	resumed, err := h.sessions.Resume(r.Context(), requesterID, req.StationID)
	if err != nil {
		writeServiceError(w, h.logger, "resume session", err)
		return
	}
	if !resumed {
		writeError(w, http.StatusConflict, "session is not paused")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"resumed": true})
}

// Extend handles POST /sessions/extend.
func (h *SessionHandlers) Extend(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	if req.TargetBatteryLevel <= 0 || req.TargetBatteryLevel > 100 {
		writeError(w, http.StatusBadRequest, "target_battery_level must be in (0, 100]")
		return
	}
	session, err := h.sessions.Extend(r.Context(), requesterID, req.StationID, req.TargetBatteryLevel)
	if err != nil {
		writeServiceError(w, h.logger, "extend session", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Status handles GET /sessions/status.
func (h *SessionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	stationID, ok := stationFromQuery(w, r)
	if !ok {
		return
	}
	session, progress, err := h.sessions.Status(requesterID, stationID)
	if err != nil {
		writeServiceError(w, h.logger, "session status", err)
		return
	}
	cost, err := h.sessions.Cost(requesterID, stationID)
	if err != nil {
		writeServiceError(w, h.logger, "session cost", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStatusResponse{
		Session:  session,
		Progress: progress,
		Cost:     service.Rounded(cost),
	})
}

// Me handles GET /sessions/me.
func (h *SessionHandlers) Me(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	sessions, err := h.history.ListByRequester(r.Context(), requesterID, historyLimit)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch sessions")
		return
	}
	if sessions == nil {
		sessions = []models.ChargingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Active handles GET /sessions/active.
func (h *SessionHandlers) Active(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Active())
}
