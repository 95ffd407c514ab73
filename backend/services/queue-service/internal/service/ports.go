package service

import (
	"context"

	"chargequeue/backend/services/queue-service/internal/models"
)

// QueueRepository is the durable record of queue entries.
type QueueRepository interface {
	InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	UpdateQueueEntry(ctx context.Context, id string, patch models.QueueEntryPatch) error
	// MoveQueueEntry writes entry's state and closes the gap it left at vacated
	// (open entries of the same station behind vacated move up by one) atomically.
	MoveQueueEntry(ctx context.Context, entry *models.QueueEntry, vacated int) error
	ListOpenQueueEntries(ctx context.Context) ([]models.QueueEntry, error)
}

// SessionRepository is the durable record of charging sessions.
type SessionRepository interface {
	InsertSession(ctx context.Context, session *models.ChargingSession) error
	UpdateSession(ctx context.Context, id string, patch models.SessionPatch, finalize bool) error
	ListOpenSessions(ctx context.Context) ([]models.ChargingSession, error)
}

// StationDirectory resolves station snapshots.
type StationDirectory interface {
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
}

// Publisher hands events to the notification gateway. Publish must not block.
type Publisher interface {
	Publish(event models.Event)
}

// Mirror keeps a read-optimized copy of live state outside the process.
type Mirror interface {
	SyncQueue(ctx context.Context, stationID string, entries []models.QueueEntry) error
	SaveSession(ctx context.Context, session *models.ChargingSession) error
	DeleteSession(ctx context.Context, session *models.ChargingSession) error
}

// Recorder receives operational measurements.
type Recorder interface {
	QueueLength(stationID string, open int)
	JoinResult(stationID string, err error)
	ReservationExpired(stationID string)
	LiveSessions(n int)
	SessionFinished(status models.SessionStatus, energy float64)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.Event) {}

type nopMirror struct{}

func (nopMirror) SyncQueue(context.Context, string, []models.QueueEntry) error { return nil }
func (nopMirror) SaveSession(context.Context, *models.ChargingSession) error   { return nil }
func (nopMirror) DeleteSession(context.Context, *models.ChargingSession) error { return nil }

type nopRecorder struct{}

func (nopRecorder) QueueLength(string, int)                       {}
func (nopRecorder) JoinResult(string, error)                      {}
func (nopRecorder) ReservationExpired(string)                     {}
func (nopRecorder) LiveSessions(int)                              {}
func (nopRecorder) SessionFinished(models.SessionStatus, float64) {}
