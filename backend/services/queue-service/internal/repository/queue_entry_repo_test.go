package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chargequeue/backend/services/queue-service/internal/models"
)

func TestQueuePatchSetOnlyWritesGivenFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	estimate := 35

	set, args := queuePatchSet(models.QueueEntryPatch{EstimatedWaitMinutes: &estimate, UpdatedAt: now})
	assert.Equal(t, "estimated_wait_minutes = $1, updated_at = $2", set)
	assert.Equal(t, []interface{}{35, now}, args)
}

func TestQueuePatchSetReservation(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(15 * time.Minute)
	status := models.QueueStatusReserved

	set, args := queuePatchSet(models.QueueEntryPatch{Status: &status, ReservationExpiry: &expiry, UpdatedAt: now})
	assert.Equal(t, "status = $1, reservation_expiry = $2, updated_at = $3", set)
	assert.Equal(t, []interface{}{status, expiry, now}, args)

	charging := models.QueueStatusCharging
	set, args = queuePatchSet(models.QueueEntryPatch{Status: &charging, ClearReservation: true, UpdatedAt: now})
	assert.Equal(t, "status = $1, reservation_expiry = NULL, updated_at = $2", set)
	assert.Len(t, args, 2)
}

func TestQueuePatchSetPosition(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pos := 2
	set, args := queuePatchSet(models.QueueEntryPatch{Position: &pos, UpdatedAt: now})
	assert.Equal(t, "position = $1, updated_at = $2", set)
	assert.Equal(t, []interface{}{2, now}, args)
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("e1").Valid)
}
