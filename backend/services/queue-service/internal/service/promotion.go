package service

import (
	"context"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/models"
)

// PromoteNext hands a reservation to the next eligible waiting requester of the station.
// It returns the promoted entry, or nil when nobody is eligible. Calling it redundantly is safe.
func (s *QueueService) PromoteNext(ctx context.Context, stationID string) *models.QueueEntry {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	promoted := s.promoteLocked(ctx, sq)
	if promoted != nil {
		s.afterChangeLocked(ctx, sq)
	}
	return promoted
}

// promoteLocked reserves at most one entry: the waiting head of an idle station, or the
// entry right behind the one that is charging. A station never holds more than one
// reservation at a time.
func (s *QueueService) promoteLocked(ctx context.Context, sq *stationQueue) *models.QueueEntry {
	candidate := nextEligible(sq.ordered())
	if candidate == nil {
		return nil
	}
	if err := s.reserveLocked(ctx, sq, candidate, s.opts.ReservationWindow, true); err != nil {
		s.logger.Warn("promotion failed",
			zap.String("station_id", sq.id),
			zap.String("entry_id", candidate.ID),
			zap.Error(err),
		)
		return nil
	}
	return candidate.Clone()
}

func nextEligible(ordered []*models.QueueEntry) *models.QueueEntry {
	for _, e := range ordered {
		if e.Status == models.QueueStatusReserved {
			return nil
		}
	}
	charging := 0
	for _, e := range ordered {
		switch e.Status {
		case models.QueueStatusCharging:
			if charging++; charging > 1 {
				return nil
			}
		case models.QueueStatusWaiting:
			return e
		default:
			return nil
		}
	}
	return nil
}
