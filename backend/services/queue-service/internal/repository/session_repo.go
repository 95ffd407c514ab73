package repository

import (
	"context"
	"database/sql"
	"time"

	"chargequeue/backend/services/queue-service/internal/models"
)

const sessionColumns = `id, requester_id, station_id, queue_entry_id, start_time, end_time,
	current_battery_level, target_battery_level, rated_power_kw, charging_rate, price_per_unit,
	energy_delivered, total_cost, efficiency, status, paused_at, paused_total_ns, created_at, updated_at`

// SessionRepository handles persistence of charging sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// InsertSession stores a new session.
func (r *SessionRepository) InsertSession(ctx context.Context, s *models.ChargingSession) error {
	const query = `
		INSERT INTO charging_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.RequesterID,
		s.StationID,
		nullString(s.QueueEntryID),
		s.StartTime,
		s.EndTime,
		s.CurrentBatteryLevel,
		s.TargetBatteryLevel,
		s.RatedPowerKW,
		s.ChargingRate,
		s.PricePerUnit,
		s.EnergyDelivered,
		s.TotalCost,
		s.Efficiency,
		s.Status,
		s.PausedAt,
		int64(s.PausedTotal),
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

// UpdateSession writes the mutable state of a session. With finalize set the row must still
// be open, so a finished session is never finalized twice.
func (r *SessionRepository) UpdateSession(ctx context.Context, id string, p models.SessionPatch, finalize bool) error {
	query := `
		UPDATE charging_sessions
		SET status = $2,
		    current_battery_level = $3,
		    target_battery_level = $4,
		    charging_rate = $5,
		    energy_delivered = $6,
		    total_cost = $7,
		    efficiency = $8,
		    paused_at = $9,
		    paused_total_ns = $10,
		    end_time = $11,
		    updated_at = $12
		WHERE id = $1
	`
	if finalize {
		query += ` AND status IN ('active', 'paused')`
	}
	return execOne(ctx, r.db, query,
		id,
		p.Status,
		p.CurrentBatteryLevel,
		p.TargetBatteryLevel,
		p.ChargingRate,
		p.EnergyDelivered,
		p.TotalCost,
		p.Efficiency,
		p.PausedAt,
		int64(p.PausedTotal),
		p.EndTime,
		p.UpdatedAt,
	)
}

// ListOpenSessions returns every active or paused session.
func (r *SessionRepository) ListOpenSessions(ctx context.Context) ([]models.ChargingSession, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE status IN ('active', 'paused')
		ORDER BY start_time
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListByRequester returns last N sessions for the requester.
func (r *SessionRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]models.ChargingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE requester_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, requesterID, limit)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]models.ChargingSession, error) {
	defer rows.Close()

	var sessions []models.ChargingSession
	for rows.Next() {
		var (
			s           models.ChargingSession
			queueEntry  sql.NullString
			endTime     sql.NullTime
			pausedAt    sql.NullTime
			pausedTotal int64
		)
		if err := rows.Scan(
			&s.ID,
			&s.RequesterID,
			&s.StationID,
			&queueEntry,
			&s.StartTime,
			&endTime,
			&s.CurrentBatteryLevel,
			&s.TargetBatteryLevel,
			&s.RatedPowerKW,
			&s.ChargingRate,
			&s.PricePerUnit,
			&s.EnergyDelivered,
			&s.TotalCost,
			&s.Efficiency,
			&s.Status,
			&pausedAt,
			&pausedTotal,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.QueueEntryID = queueEntry.String
		s.StartTime = s.StartTime.UTC()
		s.EndTime = utcPtr(endTime)
		s.PausedAt = utcPtr(pausedAt)
		s.PausedTotal = time.Duration(pausedTotal)
		s.CreatedAt = s.CreatedAt.UTC()
		s.UpdatedAt = s.UpdatedAt.UTC()
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
