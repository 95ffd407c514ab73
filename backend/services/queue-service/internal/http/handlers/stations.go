package handlers

import (
	"net/http"
	"time"

	"chargequeue/backend/services/queue-service/internal/models"
)

// QueueSlot is the public view of one position in a station queue.
type QueueSlot struct {
	Position             int                `json:"position"`
	Status               models.QueueStatus `json:"status"`
	EstimatedWaitMinutes int                `json:"estimated_wait_minutes"`
	ReservationExpiry    *time.Time         `json:"reservation_expiry,omitempty"`
}

type stationQueueResponse struct {
	StationID string      `json:"station_id"`
	Length    int         `json:"length"`
	Slots     []QueueSlot `json:"slots"`
}

// StationHandlers serves the public station views.
type StationHandlers struct {
	queue QueueAPI
}

// NewStationHandlers returns handler.
func NewStationHandlers(queue QueueAPI) *StationHandlers {
	return &StationHandlers{queue: queue}
}

// Queue handles GET /stations/queue. Requester identities are not exposed.
func (h *StationHandlers) Queue(w http.ResponseWriter, r *http.Request) {
	stationID, ok := stationFromQuery(w, r)
	if !ok {
		return
	}
	entries := h.queue.Snapshot(stationID)
	slots := make([]QueueSlot, 0, len(entries))
	for _, e := range entries {
		slots = append(slots, QueueSlot{
			Position:             e.Position,
			Status:               e.Status,
			EstimatedWaitMinutes: e.EstimatedWaitMinutes,
			ReservationExpiry:    e.ReservationExpiry,
		})
	}
	writeJSON(w, http.StatusOK, stationQueueResponse{StationID: stationID, Length: len(slots), Slots: slots})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
