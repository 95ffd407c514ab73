package models

import "time"

// EventType names a state change delivered to requesters.
type EventType string

const (
	EventQueueJoined         EventType = "queue.joined"
	EventQueuePositionUpdate EventType = "queue.position_updated"
	EventReservationGranted  EventType = "queue.reservation_granted"
	EventReservationExpired  EventType = "queue.reservation_expired"
	EventQueueLeft           EventType = "queue.left"
	EventChargingStarted     EventType = "queue.charging_started"
	EventSessionStarted      EventType = "session.started"
	EventSessionProgress     EventType = "session.progress"
	EventSessionPaused       EventType = "session.paused"
	EventSessionResumed      EventType = "session.resumed"
	EventSessionExtended     EventType = "session.extended"
	EventSessionCompleted    EventType = "session.completed"
	EventSessionStopped      EventType = "session.stopped"
)

// EventPayload is implemented by every typed event body.
type EventPayload interface {
	EventType() EventType
}

// Event is the envelope handed to the notification gateway.
type Event struct {
	Type        EventType    `json:"type"`
	RequesterID string       `json:"requester_id"`
	StationID   string       `json:"station_id"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Data        EventPayload `json:"data"`
}

// NewEvent wraps payload in an envelope addressed to requesterID.
func NewEvent(requesterID, stationID string, at time.Time, payload EventPayload) Event {
	return Event{
		Type:        payload.EventType(),
		RequesterID: requesterID,
		StationID:   stationID,
		OccurredAt:  at.UTC(),
		Data:        payload,
	}
}

// QueueJoined confirms admission.
type QueueJoined struct {
	EntryID              string `json:"entry_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	Rejoined             bool   `json:"rejoined"`
}

func (QueueJoined) EventType() EventType { return EventQueueJoined }

// PositionUpdated is sent when an entry moves up after a departure ahead of it.
type PositionUpdated struct {
	EntryID              string `json:"entry_id"`
	PreviousPosition     int    `json:"previous_position"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

func (PositionUpdated) EventType() EventType { return EventQueuePositionUpdate }

// ReservationGranted tells the requester the station is held for them.
type ReservationGranted struct {
	EntryID       string    `json:"entry_id"`
	Position      int       `json:"position"`
	ExpiresAt     time.Time `json:"expires_at"`
	WindowMinutes int       `json:"window_minutes"`
	Promoted      bool      `json:"promoted"`
}

func (ReservationGranted) EventType() EventType { return EventReservationGranted }

// ReservationExpired is sent when an unused reservation lapses.
type ReservationExpired struct {
	EntryID   string    `json:"entry_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (ReservationExpired) EventType() EventType { return EventReservationExpired }

// QueueLeft confirms a departure.
type QueueLeft struct {
	EntryID  string      `json:"entry_id"`
	Reason   string      `json:"reason"`
	Status   QueueStatus `json:"status"`
	Position int         `json:"position"`
}

func (QueueLeft) EventType() EventType { return EventQueueLeft }

// ChargingStarted confirms the reserved entry moved to charging.
type ChargingStarted struct {
	EntryID string `json:"entry_id"`
}

func (ChargingStarted) EventType() EventType { return EventChargingStarted }

// SessionStarted announces a new session.
type SessionStarted struct {
	SessionID          string  `json:"session_id"`
	BatteryLevel       float64 `json:"battery_level"`
	TargetBatteryLevel float64 `json:"target_battery_level"`
	ChargingRate       float64 `json:"charging_rate"`
	PricePerUnit       float64 `json:"price_per_unit"`
}

func (SessionStarted) EventType() EventType { return EventSessionStarted }

// SessionProgress is the periodic progress report.
type SessionProgress struct {
	SessionID string        `json:"session_id"`
	Progress  Progress      `json:"progress"`
	Cost      CostBreakdown `json:"cost"`
}

func (SessionProgress) EventType() EventType { return EventSessionProgress }

// SessionPaused announces a pause and when it ends on its own.
type SessionPaused struct {
	SessionID    string    `json:"session_id"`
	AutoResumeAt time.Time `json:"auto_resume_at"`
}

func (SessionPaused) EventType() EventType { return EventSessionPaused }

// SessionResumed announces a resume.
type SessionResumed struct {
	SessionID string `json:"session_id"`
	Automatic bool   `json:"automatic"`
}

func (SessionResumed) EventType() EventType { return EventSessionResumed }

// SessionExtended announces a raised battery target.
type SessionExtended struct {
	SessionID          string  `json:"session_id"`
	TargetBatteryLevel float64 `json:"target_battery_level"`
}

func (SessionExtended) EventType() EventType { return EventSessionExtended }

// SessionFinished carries the settlement of a completed or stopped session.
type SessionFinished struct {
	Summary SessionSummary `json:"summary"`
	Reason  string         `json:"reason,omitempty"`
}

func (f SessionFinished) EventType() EventType {
	if f.Summary.Status == SessionStatusStopped {
		return EventSessionStopped
	}
	return EventSessionCompleted
}
