package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	libdb "chargequeue/backend/libs/db"
	"chargequeue/backend/services/queue-service/internal/models"
)

const queueEntryColumns = `id, station_id, requester_id, position, status, estimated_wait_minutes, reservation_expiry, created_at, updated_at`

// QueueEntryRepository persists queue entries.
type QueueEntryRepository struct {
	db *sql.DB
}

// NewQueueEntryRepository returns repository.
func NewQueueEntryRepository(db *sql.DB) *QueueEntryRepository {
	return &QueueEntryRepository{db: db}
}

// InsertQueueEntry stores a new entry.
func (r *QueueEntryRepository) InsertQueueEntry(ctx context.Context, e *models.QueueEntry) error {
	const query = `
		INSERT INTO queue_entries (` + queueEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.StationID,
		e.RequesterID,
		e.Position,
		e.Status,
		e.EstimatedWaitMinutes,
		e.ReservationExpiry,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

// UpdateQueueEntry overwrites the fields set in patch.
func (r *QueueEntryRepository) UpdateQueueEntry(ctx context.Context, id string, patch models.QueueEntryPatch) error {
	set, args := queuePatchSet(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE queue_entries SET %s WHERE id = $%d`, set, len(args))
	return execOne(ctx, r.db, query, args...)
}

// MoveQueueEntry writes e and shifts the open entries behind vacated up by one in a
// single transaction.
func (r *QueueEntryRepository) MoveQueueEntry(ctx context.Context, e *models.QueueEntry, vacated int) error {
	return libdb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const shift = `
			UPDATE queue_entries
			SET position = position - 1,
			    updated_at = $4
			WHERE station_id = $1
			  AND id <> $2
			  AND position > $3
			  AND status IN ('waiting', 'reserved', 'charging')
		`
		if _, err := tx.ExecContext(ctx, shift, e.StationID, e.ID, vacated, e.UpdatedAt); err != nil {
			return err
		}
		const write = `
			UPDATE queue_entries
			SET position = $2,
			    status = $3,
			    estimated_wait_minutes = $4,
			    reservation_expiry = $5,
			    updated_at = $6
			WHERE id = $1
		`
		return execOne(ctx, tx, write,
			e.ID,
			e.Position,
			e.Status,
			e.EstimatedWaitMinutes,
			e.ReservationExpiry,
			e.UpdatedAt,
		)
	})
}

// ListOpenQueueEntries returns every waiting, reserved or charging entry.
func (r *QueueEntryRepository) ListOpenQueueEntries(ctx context.Context) ([]models.QueueEntry, error) {
	const query = `
		SELECT ` + queueEntryColumns + `
		FROM queue_entries
		WHERE status IN ('waiting', 'reserved', 'charging')
		ORDER BY station_id, position, created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanQueueEntries(rows)
}

// ListByRequester returns the requester's latest entries across all stations.
func (r *QueueEntryRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]models.QueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + queueEntryColumns + `
		FROM queue_entries
		WHERE requester_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, requesterID, limit)
	if err != nil {
		return nil, err
	}
	return scanQueueEntries(rows)
}

func scanQueueEntries(rows *sql.Rows) ([]models.QueueEntry, error) {
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var (
			e      models.QueueEntry
			expiry sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.StationID,
			&e.RequesterID,
			&e.Position,
			&e.Status,
			&e.EstimatedWaitMinutes,
			&expiry,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if expiry.Valid {
			t := expiry.Time.UTC()
			e.ReservationExpiry = &t
		}
		e.CreatedAt = e.CreatedAt.UTC()
		e.UpdatedAt = e.UpdatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// queuePatchSet renders the SET clause of patch with positional arguments starting at $1.
func queuePatchSet(patch models.QueueEntryPatch) (string, []interface{}) {
	var (
		cols []string
		args []interface{}
	)
	add := func(col string, v interface{}) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.EstimatedWaitMinutes != nil {
		add("estimated_wait_minutes", *patch.EstimatedWaitMinutes)
	}
	switch {
	case patch.ClearReservation:
		cols = append(cols, "reservation_expiry = NULL")
	case patch.ReservationExpiry != nil:
		add("reservation_expiry", *patch.ReservationExpiry)
	}
	add("updated_at", patch.UpdatedAt)
	return strings.Join(cols, ", "), args
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, db execer, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
