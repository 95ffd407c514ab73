package handlers

import (
	"context"
	"time"

	"chargequeue/backend/services/queue-service/internal/models"
)

// QueueAPI is the admission queue as seen by the HTTP layer.
type QueueAPI interface {
	Join(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error)
	Leave(ctx context.Context, requesterID, stationID, reason string) (bool, error)
	Reserve(ctx context.Context, requesterID, stationID string, window time.Duration) (*models.QueueEntry, error)
	StartCharging(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error)
	CompleteCharging(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error)
	Status(requesterID, stationID string) (*models.QueueEntry, error)
	Snapshot(stationID string) []models.QueueEntry
}

// SessionAPI is the session engine as seen by the HTTP layer.
type SessionAPI interface {
	Start(ctx context.Context, requesterID, stationID, queueEntryID string) (*models.ChargingSession, error)
	Complete(ctx context.Context, requesterID, stationID string) (*models.SessionSummary, error)
	Stop(ctx context.Context, requesterID, stationID, reason string) (*models.SessionSummary, error)
	Pause(ctx context.Context, requesterID, stationID string) (bool, error)
	Resume(ctx context.Context, requesterID, stationID string) (bool, error)
	Extend(ctx context.Context, requesterID, stationID string, newTarget float64) (*models.ChargingSession, error)
	Status(requesterID, stationID string) (*models.ChargingSession, models.Progress, error)
	Cost(requesterID, stationID string) (models.CostBreakdown, error)
	Active() []models.ChargingSession
}

// QueueHistory lists a requester's past and present queue entries.
type QueueHistory interface {
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]models.QueueEntry, error)
}

// SessionHistory lists a requester's sessions.
type SessionHistory interface {
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]models.ChargingSession, error)
}
