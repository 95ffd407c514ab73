package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chargequeue/backend/services/queue-service/internal/models"
)

// Store mirrors live queue order and open sessions into redis for cheap reads by other services.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func queueKey(stationID string) string {
	return fmt.Sprintf("queue:order:%s", stationID)
}

func queueEntriesKey(stationID string) string {
	return fmt.Sprintf("queue:entries:%s", stationID)
}

func sessionKey(stationID, requesterID string) string {
	return fmt.Sprintf("sessions:live:%s:%s", stationID, requesterID)
}

// SyncQueue replaces the mirrored order of a station with entries.
func (s *Store) SyncQueue(ctx context.Context, stationID string, entries []models.QueueEntry) error {
	order, details := queueKey(stationID), queueEntriesKey(stationID)

	members := make([]redis.Z, 0, len(entries))
	fields := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		members = append(members, redis.Z{Score: float64(e.Position), Member: e.RequesterID})
		fields[e.RequesterID] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, order, details)
		if len(members) == 0 {
			return nil
		}
		pipe.ZAdd(ctx, order, members...)
		pipe.HSet(ctx, details, fields)
		pipe.Expire(ctx, order, s.ttl)
		pipe.Expire(ctx, details, s.ttl)
		return nil
	})
	return err
}

// SaveSession caches an open session.
func (s *Store) SaveSession(ctx context.Context, session *models.ChargingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.StationID, session.RequesterID), data, s.ttl).Err()
}

// DeleteSession removes a cached session.
func (s *Store) DeleteSession(ctx context.Context, session *models.ChargingSession) error {
	return s.client.Del(ctx, sessionKey(session.StationID, session.RequesterID)).Err()
}
