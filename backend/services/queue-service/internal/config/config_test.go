package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_POSTGRES_DSN", "postgres://localhost/queue")
	t.Setenv("QUEUE_JWT_SECRET", "secret")
	t.Setenv("QUEUE_RESERVATION_WINDOW", "20m")
	t.Setenv("BILLING_GST_RATE", "0.12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, cfg.Queue.ReservationWindow)
	assert.Equal(t, 5, cfg.Queue.BaseWaitMinutes)
	assert.Equal(t, 30*time.Second, cfg.Session.TickInterval)
	assert.InDelta(t, 0.12, cfg.Billing.GSTRate, 1e-9)
	assert.InDelta(t, 5.0, cfg.Billing.PlatformFeeFloor, 1e-9)
	assert.Equal(t, ":8085", cfg.HTTPAddress())
}

func TestLoadRequiresDSNAndSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_POSTGRES_DSN", "")
	t.Setenv("QUEUE_JWT_SECRET", "secret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("QUEUE_POSTGRES_DSN", "postgres://localhost/queue")
	t.Setenv("QUEUE_JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateRejectsInvertedBatteryLevels(t *testing.T) {
	cfg := Default()
	cfg.Session.InitialBatteryLevel = 90
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Queue.ReservationWindow = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestHTTPAddress(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = ":9000"
	assert.Equal(t, ":9000", cfg.HTTPAddress())
	cfg.HTTP.Port = ""
	assert.Equal(t, ":8085", cfg.HTTPAddress())
}

func TestLoadReadsStationSeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue:
  reservationWindow: 10m
stations:
  - id: st-1
    name: Depot North
    maxQueueLength: 4
    averageSessionMinutes: 30
    pricePerUnit: 12.5
    ratedPowerKw: 50
  - id: st-2
    closed: true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUEUE_POSTGRES_DSN", "postgres://localhost/queue")
	t.Setenv("QUEUE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Queue.ReservationWindow)
	require.Len(t, cfg.Stations, 2)
	assert.Equal(t, "Depot North", cfg.Stations[0].Name)
	assert.Equal(t, 4, cfg.Stations[0].MaxQueueLength)
	assert.True(t, cfg.Stations[1].Closed)
}

func TestValidateRejectsDuplicateStations(t *testing.T) {
	cfg := Default()
	cfg.Stations = []StationSeed{{ID: "st-1"}, {ID: "st-1"}}
	assert.Error(t, cfg.Validate())
}
