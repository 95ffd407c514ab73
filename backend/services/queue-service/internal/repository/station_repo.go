package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargequeue/backend/services/queue-service/internal/models"
)

// StationRepository reads charging station settings.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// GetStation returns the station, or nil when it does not exist.
func (r *StationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	const query = `
		SELECT id, name, is_active, is_open, max_queue_length, average_session_minutes, price_per_unit, rated_power_kw
		FROM charging_stations
		WHERE id = $1
	`
	var st models.Station
	err := r.db.QueryRowContext(ctx, query, stationID).Scan(
		&st.ID,
		&st.Name,
		&st.IsActive,
		&st.IsOpen,
		&st.MaxQueueLength,
		&st.AverageSessionMinutes,
		&st.PricePerUnit,
		&st.RatedPowerKW,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Upsert stores or updates station settings.
func (r *StationRepository) Upsert(ctx context.Context, st *models.Station) error {
	const query = `
		INSERT INTO charging_stations (id, name, is_active, is_open, max_queue_length, average_session_minutes, price_per_unit, rated_power_kw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			is_open = EXCLUDED.is_open,
			max_queue_length = EXCLUDED.max_queue_length,
			average_session_minutes = EXCLUDED.average_session_minutes,
			price_per_unit = EXCLUDED.price_per_unit,
			rated_power_kw = EXCLUDED.rated_power_kw,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		st.ID,
		st.Name,
		st.IsActive,
		st.IsOpen,
		st.MaxQueueLength,
		st.AverageSessionMinutes,
		st.PricePerUnit,
		st.RatedPowerKW,
	)
	return err
}
