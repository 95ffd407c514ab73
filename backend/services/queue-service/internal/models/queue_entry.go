package models

import "time"

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusReserved  QueueStatus = "reserved"
	QueueStatusCharging  QueueStatus = "charging"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusCancelled QueueStatus = "cancelled"
)

// Open reports whether the status takes part in station ordering.
func (s QueueStatus) Open() bool {
	switch s {
	case QueueStatusWaiting, QueueStatusReserved, QueueStatusCharging:
		return true
	}
	return false
}

// QueueEntry is one requester's standing request for a station.
type QueueEntry struct {
	ID                   string      `db:"id" json:"id"`
	StationID            string      `db:"station_id" json:"station_id"`
	RequesterID          string      `db:"requester_id" json:"requester_id"`
	Position             int         `db:"position" json:"position"`
	Status               QueueStatus `db:"status" json:"status"`
	EstimatedWaitMinutes int         `db:"estimated_wait_minutes" json:"estimated_wait_minutes"`
	ReservationExpiry    *time.Time  `db:"reservation_expiry" json:"reservation_expiry,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// Clone returns a copy that does not share the expiry pointer.
func (e *QueueEntry) Clone() *QueueEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ReservationExpiry != nil {
		exp := *e.ReservationExpiry
		c.ReservationExpiry = &exp
	}
	return &c
}

// QueueEntryPatch lists the fields of a queue entry to overwrite. Nil fields are left alone.
type QueueEntryPatch struct {
	Position             *int
	Status               *QueueStatus
	EstimatedWaitMinutes *int
	ReservationExpiry    *time.Time
	ClearReservation     bool
	UpdatedAt            time.Time
}
