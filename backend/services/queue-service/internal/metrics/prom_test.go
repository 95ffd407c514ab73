package metrics

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargequeue/backend/services/queue-service/internal/models"
	"chargequeue/backend/services/queue-service/internal/service"
)

func TestPromRecorderCountsJoinsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorder(reg)
	require.NoError(t, err)

	rec.JoinResult("st-1", nil)
	rec.JoinResult("st-1", nil)
	rec.JoinResult("st-1", fmt.Errorf("wrapped: %w", service.ErrQueueFull))
	rec.JoinResult("st-2", service.ErrResourceUnavailable)

	expected := `
# HELP chargequeue_joins_total Join attempts by outcome
# TYPE chargequeue_joins_total counter
chargequeue_joins_total{result="full",station_id="st-1"} 1
chargequeue_joins_total{result="ok",station_id="st-1"} 2
chargequeue_joins_total{result="unavailable",station_id="st-2"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(rec.joins, strings.NewReader(expected)))
}

func TestPromRecorderSessionsAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorder(reg)
	require.NoError(t, err)

	rec.QueueLength("st-1", 4)
	rec.LiveSessions(3)
	rec.SessionFinished(models.SessionStatusCompleted, 36)
	rec.SessionFinished(models.SessionStatusStopped, 3)
	rec.ReservationExpired("st-1")

	assert.Equal(t, 4.0, testutil.ToFloat64(rec.queueLength.WithLabelValues("st-1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.liveSessions))
	assert.Equal(t, 39.0, testutil.ToFloat64(rec.energyDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.finished.WithLabelValues("stopped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.expirations.WithLabelValues("st-1")))
}

func TestNewPromRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromRecorder(reg)
	require.NoError(t, err)
	second, err := NewPromRecorder(reg)
	require.NoError(t, err)

	first.LiveSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(second.liveSessions))
}
