package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/models"
	"chargequeue/backend/services/queue-service/internal/service"
)

const historyLimit = 50

type queueRequest struct {
	StationID     string `json:"station_id"`
	Reason        string `json:"reason,omitempty"`
	WindowMinutes int    `json:"window_minutes,omitempty"`
}

type startResponse struct {
	Entry   *models.QueueEntry      `json:"entry"`
	Session *models.ChargingSession `json:"session"`
}

type completeResponse struct {
	Entry   *models.QueueEntry     `json:"entry,omitempty"`
	Summary *models.SessionSummary `json:"summary,omitempty"`
}

// QueueHandlers serves the requester-facing queue endpoints.
type QueueHandlers struct {
	queue    QueueAPI
	sessions SessionAPI
	history  QueueHistory
	logger   *zap.Logger
}

// NewQueueHandlers returns handler.
func NewQueueHandlers(queue QueueAPI, sessions SessionAPI, history QueueHistory, logger *zap.Logger) *QueueHandlers {
	return &QueueHandlers{queue: queue, sessions: sessions, history: history, logger: logger}
}

func (h *QueueHandlers) parse(w http.ResponseWriter, r *http.Request) (string, queueRequest, bool) {
	requesterID, ok := requester(w, r)
	if !ok {
		return "", queueRequest{}, false
	}
	var req queueRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return "", queueRequest{}, false
	}
	req.StationID = strings.TrimSpace(req.StationID)
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return "", queueRequest{}, false
	}
	return requesterID, req, true
}

// Join handles POST /queue/join.
func (h *QueueHandlers) Join(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	entry, err := h.queue.Join(r.Context(), requesterID, req.StationID)
	if err != nil {
		writeServiceError(w, h.logger, "join queue", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Leave handles POST /queue/leave.
func (h *QueueHandlers) Leave(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	reason := service.ReasonCancelled
	switch strings.TrimSpace(req.Reason) {
	case "", service.ReasonCancelled:
	case service.ReasonCompleted:
		reason = service.ReasonCompleted
	default:
		writeError(w, http.StatusBadRequest, "reason must be cancelled or completed")
		return
	}
	left, err := h.queue.Leave(r.Context(), requesterID, req.StationID, reason)
	if err != nil {
		writeServiceError(w, h.logger, "leave queue", err)
		return
	}
	if !left {
		writeError(w, http.StatusNotFound, "no open queue entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

// Reserve handles POST /queue/reserve.
func (h *QueueHandlers) Reserve(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	if req.WindowMinutes < 0 {
		writeError(w, http.StatusBadRequest, "window_minutes must not be negative")
		return
	}
	window := time.Duration(req.WindowMinutes) * time.Minute
	entry, err := h.queue.Reserve(r.Context(), requesterID, req.StationID, window)
	if err != nil {
		writeServiceError(w, h.logger, "reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Start handles POST /queue/start: the reserved entry moves to charging and a session opens.
// A repeated call for an entry that is already charging only makes sure the session exists.
func (h *QueueHandlers) Start(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	entry, err := h.queue.StartCharging(r.Context(), requesterID, req.StationID)
	if err != nil {
		if !errors.Is(err, service.ErrNotEligible) {
			writeServiceError(w, h.logger, "start charging", err)
			return
		}
		current, statusErr := h.queue.Status(requesterID, req.StationID)
		if statusErr != nil || current.Status != models.QueueStatusCharging {
			writeServiceError(w, h.logger, "start charging", err)
			return
		}
		entry = current
	}
	session, err := h.sessions.Start(r.Context(), requesterID, req.StationID, entry.ID)
	if err != nil {
		writeServiceError(w, h.logger, "start session", err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Entry: entry, Session: session})
}

// Complete handles POST /queue/complete. An active session is completed and its entry
// closed; a paused one is stopped, which closes the entry on its own.
func (h *QueueHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	requesterID, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var resp completeResponse
	session, _, err := h.sessions.Status(requesterID, req.StationID)
	switch {
	case err == nil && session.Status == models.SessionStatusPaused:
		summary, err := h.sessions.Stop(ctx, requesterID, req.StationID, service.StopReasonRequested)
		if err != nil {
			writeServiceError(w, h.logger, "stop session", err)
			return
		}
		writeJSON(w, http.StatusOK, completeResponse{Summary: summary})
		return
	case err == nil:
		summary, err := h.sessions.Complete(ctx, requesterID, req.StationID)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			writeServiceError(w, h.logger, "complete session", err)
			return
		}
		resp.Summary = summary
	case !errors.Is(err, service.ErrNotFound):
		writeServiceError(w, h.logger, "session status", err)
		return
	}

	entry, err := h.queue.CompleteCharging(ctx, requesterID, req.StationID)
	if err != nil {
		if resp.Summary != nil && errors.Is(err, service.ErrNotFound) {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeServiceError(w, h.logger, "complete charging", err)
		return
	}
	resp.Entry = entry
	writeJSON(w, http.StatusOK, resp)
}

// Status handles GET /queue/status.
func (h *QueueHandlers) Status(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	stationID, ok := stationFromQuery(w, r)
	if !ok {
		return
	}
	entry, err := h.queue.Status(requesterID, stationID)
	if err != nil {
		writeServiceError(w, h.logger, "queue status", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Me handles GET /queue/me.
func (h *QueueHandlers) Me(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	entries, err := h.history.ListByRequester(r.Context(), requesterID, historyLimit)
	if err != nil {
		h.logger.Error("list queue history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch queue history")
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
