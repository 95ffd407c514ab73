package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargequeue/backend/services/queue-service/internal/clock"
	"chargequeue/backend/services/queue-service/internal/models"
)

type sessionFixture struct {
	sessions *SessionService
	queue    *QueueService
	repo     *memSessionRepo
	queueDB  *memQueueRepo
	clock    *clock.Fake
	events   *recordingPublisher
	metrics  *countingRecorder
}

func newSessionFixture(t *testing.T, stations ...*models.Station) *sessionFixture {
	t.Helper()
	dir := stationDir{}
	for _, st := range stations {
		dir[st.ID] = st
	}
	f := &sessionFixture{
		repo:    newMemSessionRepo(),
		queueDB: newMemQueueRepo(),
		clock:   clock.NewFake(epoch),
		events:  &recordingPublisher{},
		metrics: &countingRecorder{},
	}
	f.queue = NewQueueService(f.queueDB, dir, f.clock,
		QueueOptions{ReservationWindow: 15 * time.Minute, BaseWaitMinutes: 5}, nil,
		WithPublisher(f.events))
	f.sessions = NewSessionService(f.repo, dir, f.queue, f.clock, DefaultSessionOptions(), nil,
		WithPublisher(f.events), WithRecorder(f.metrics))
	t.Cleanup(f.sessions.Shutdown)
	return f
}

// charge walks requester through join, reserve and start at the station.
func (f *sessionFixture) charge(t *testing.T, requesterID, stationID string) *models.ChargingSession {
	t.Helper()
	ctx := context.Background()
	entry, err := f.queue.Join(ctx, requesterID, stationID)
	require.NoError(t, err)
	if entry.Status == models.QueueStatusWaiting {
		_, err = f.queue.Reserve(ctx, requesterID, stationID, 0)
		require.NoError(t, err)
	}
	_, err = f.queue.StartCharging(ctx, requesterID, stationID)
	require.NoError(t, err)
	sess, err := f.sessions.Start(ctx, requesterID, stationID, entry.ID)
	require.NoError(t, err)
	return sess
}

func TestStartIsIdempotentPerPair(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	first := f.charge(t, "a", "st-1")

	assert.Equal(t, models.SessionStatusActive, first.Status)
	assert.Equal(t, 20.0, first.CurrentBatteryLevel)
	assert.Equal(t, 80.0, first.TargetBatteryLevel)
	assert.Equal(t, SessionID("a", "st-1", epoch), first.ID)

	f.clock.Advance(time.Minute)
	again, err := f.sessions.Start(context.Background(), "a", "st-1", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.sessions.Active(), 1)
	assert.Len(t, f.events.ofType(models.EventSessionStarted), 1)

	_, err = f.sessions.Start(context.Background(), "a", "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.sessions.Active(), 1)
}

func TestProgressIsMonotonicAndBounded(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")

	last := 0.0
	for i := 0; i < 23; i++ {
		f.clock.Advance(5 * time.Minute)
		sess, p, err := f.sessions.Status("a", "st-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sess.CurrentBatteryLevel, last)
		assert.LessOrEqual(t, sess.CurrentBatteryLevel, sess.TargetBatteryLevel)
		assert.InDelta(t, sess.CurrentBatteryLevel, p.BatteryLevel, 1e-9)
		last = sess.CurrentBatteryLevel
	}
	// 115 minutes of the 120 needed at 30 kW.
	assert.InDelta(t, 77.5, last, 1e-6)
	assert.NotEmpty(t, f.events.ofType(models.EventSessionProgress))
	assert.Positive(t, f.repo.checkpoints)
}

func TestSessionCompletesAtTargetAndFreesStation(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	sess := f.charge(t, "a", "st-1")
	_, err := f.queue.Join(context.Background(), "b", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusReserved, statuses(f.queue.Snapshot("st-1"))["b"])
	// Keep b's hold alive past the session.
	_, err = f.queue.StartCharging(context.Background(), "b", "st-1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	_, _, err = f.sessions.Status("a", "st-1")
	assert.ErrorIs(t, err, ErrNotFound)

	stored := f.repo.get(sess.ID)
	assert.Equal(t, models.SessionStatusCompleted, stored.Status)
	require.NotNil(t, stored.EndTime)
	assert.Equal(t, epoch.Add(2*time.Hour), *stored.EndTime)
	assert.InDelta(t, 80.0, stored.CurrentBatteryLevel, 1e-9)
	assert.InDelta(t, 36.0, stored.EnergyDelivered, 1e-9)
	assert.InDelta(t, 446.04, stored.TotalCost, 1e-6)

	finished := f.events.ofType(models.EventSessionCompleted)
	require.Len(t, finished, 1)
	summary := finished[0].Data.(models.SessionFinished).Summary
	assert.Equal(t, 2*time.Hour, summary.Duration)
	assert.InDelta(t, 360.0, summary.Cost.EnergyCost, 1e-9)
	assert.InDelta(t, 18.0, summary.Cost.PlatformFee, 1e-9)
	assert.InDelta(t, 68.04, summary.Cost.GST, 1e-9)

	_, err = f.queue.Status("a", "st-1")
	assert.ErrorIs(t, err, ErrNotFound, "queue entry closed")
	assert.Equal(t, map[string]int{"b": 1}, positions(f.queue.Snapshot("st-1")))
	assert.Equal(t, 1, f.metrics.finished[models.SessionStatusCompleted])
	assert.GreaterOrEqual(t, len(f.events.ofType(models.EventSessionProgress)), 11)
}

func TestPauseHoldsProgressAndResumeContinues(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")
	ctx := context.Background()

	f.clock.Advance(30 * time.Minute)
	ok, err := f.sessions.Pause(ctx, "a", "st-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.sessions.Pause(ctx, "a", "st-1")
	require.NoError(t, err)
	assert.False(t, ok, "already paused")

	f.clock.Advance(5 * time.Minute)
	sess, p, err := f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPaused, sess.Status)
	assert.InDelta(t, 35.0, sess.CurrentBatteryLevel, 1e-9)
	assert.Zero(t, p.ChargingRate)

	ok, err = f.sessions.Resume(ctx, "a", "st-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.sessions.Resume(ctx, "a", "st-1")
	require.NoError(t, err)
	assert.False(t, ok, "already active")

	f.clock.Advance(30 * time.Minute)
	sess, _, err = f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, sess.CurrentBatteryLevel, 1e-9)
	assert.Equal(t, 5*time.Minute, sess.PausedTotal)

	resumed := f.events.ofType(models.EventSessionResumed)
	require.Len(t, resumed, 1)
	assert.False(t, resumed[0].Data.(models.SessionResumed).Automatic)

	_, err = f.sessions.Pause(ctx, "z", "st-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPausedSessionResumesAutomatically(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")

	ok, err := f.sessions.Pause(context.Background(), "a", "st-1")
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(10 * time.Minute)
	sess, _, err := f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, sess.Status)

	resumed := f.events.ofType(models.EventSessionResumed)
	require.Len(t, resumed, 1)
	assert.True(t, resumed[0].Data.(models.SessionResumed).Automatic)

	f.clock.Advance(12 * time.Minute)
	sess, _, err = f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.InDelta(t, 26.0, sess.CurrentBatteryLevel, 1e-9)
}

func TestStopSettlesPartialSessionAndPromotesNext(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	sess := f.charge(t, "a", "st-1")
	for _, req := range []string{"b", "c"} {
		_, err := f.queue.Join(context.Background(), req, "st-1")
		require.NoError(t, err)
	}

	f.clock.Advance(10 * time.Minute)
	ok, err := f.sessions.Pause(context.Background(), "a", "st-1")
	require.NoError(t, err)
	require.True(t, ok)
	f.clock.Advance(time.Minute)

	summary, err := f.sessions.Stop(context.Background(), "a", "st-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusStopped, summary.Status)
	assert.InDelta(t, 25.0, summary.FinalBatteryLevel, 1e-9)
	assert.InDelta(t, 3.0, summary.EnergyDelivered, 1e-9)
	assert.InDelta(t, 5.0, summary.Cost.PlatformFee, 1e-9, "fee floor")
	assert.InDelta(t, summary.Cost.EnergyCost+summary.Cost.PlatformFee+summary.Cost.GST, summary.Cost.TotalCost, 1e-9)

	stored := f.repo.get(sess.ID)
	assert.Equal(t, models.SessionStatusStopped, stored.Status)
	assert.Nil(t, stored.PausedAt)
	assert.Equal(t, time.Minute, stored.PausedTotal)

	snap := f.queue.Snapshot("st-1")
	assert.Equal(t, map[string]int{"b": 1, "c": 2}, positions(snap))
	assert.Equal(t, models.QueueStatusReserved, statuses(snap)["b"])

	_, err = f.sessions.Stop(context.Background(), "a", "st-1", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.events.ofType(models.EventSessionStopped), 1)

	// The pending auto-resume was cancelled with the session.
	f.clock.Advance(time.Hour)
	assert.Empty(t, f.events.ofType(models.EventSessionResumed))
}

func TestStopKeepsSessionWhenFinalWriteFails(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")

	f.repo.setFailUpdates(true)
	_, err := f.sessions.Stop(context.Background(), "a", "st-1", "")
	assert.ErrorIs(t, err, ErrPersistence)

	sess, _, err := f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, sess.Status)
	entry, err := f.queue.Status("a", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCharging, entry.Status)

	f.repo.setFailUpdates(false)
	_, err = f.sessions.Stop(context.Background(), "a", "st-1", "")
	require.NoError(t, err)
}

func TestExtendRaisesTarget(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")
	ctx := context.Background()

	_, err := f.sessions.Extend(ctx, "a", "st-1", 75)
	assert.ErrorIs(t, err, ErrNotEligible)
	_, err = f.sessions.Extend(ctx, "a", "st-1", 101)
	assert.ErrorIs(t, err, ErrNotEligible)

	sess, err := f.sessions.Extend(ctx, "a", "st-1", 90)
	require.NoError(t, err)
	assert.Equal(t, 90.0, sess.TargetBatteryLevel)

	// 70 points at 30 kW take 140 minutes.
	f.clock.Advance(2 * time.Hour)
	_, _, err = f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	_, _, err = f.sessions.Status("a", "st-1")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := f.sessions.Pause(ctx, "a", "st-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)
}

func TestExtendRejectsPausedSession(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	f.charge(t, "a", "st-1")
	ok, err := f.sessions.Pause(context.Background(), "a", "st-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.sessions.Extend(context.Background(), "a", "st-1", 90)
	assert.ErrorIs(t, err, ErrNotEligible)
	_, err = f.sessions.Complete(context.Background(), "a", "st-1")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestSweepStopsStaleSessions(t *testing.T) {
	idle := openStation("idle", 10)
	idle.RatedPowerKW = 0
	f := newSessionFixture(t, idle)
	f.charge(t, "a", "idle")
	f.sessions.StartSweeper()

	f.clock.Advance(23 * time.Hour)
	require.Len(t, f.sessions.Active(), 1)

	f.clock.Advance(time.Hour)
	assert.Empty(t, f.sessions.Active())

	stopped := f.events.ofType(models.EventSessionStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, StopReasonStale, stopped[0].Data.(models.SessionFinished).Reason)
	assert.Empty(t, f.queue.Snapshot("idle"))
}

func TestRestoreResumesOpenSessions(t *testing.T) {
	f := newSessionFixture(t, openStation("st-1", 10))
	pausedAt := epoch.Add(-5 * time.Minute)
	for _, s := range []*models.ChargingSession{
		{ID: "s1", RequesterID: "a", StationID: "st-1", StartTime: epoch.Add(-30 * time.Minute),
			CurrentBatteryLevel: 30, TargetBatteryLevel: 80, RatedPowerKW: 30, PricePerUnit: 10,
			Status: models.SessionStatusActive},
		{ID: "s2", RequesterID: "b", StationID: "st-1", StartTime: epoch.Add(-time.Hour),
			CurrentBatteryLevel: 40, TargetBatteryLevel: 80, RatedPowerKW: 30, PricePerUnit: 10,
			Status: models.SessionStatusPaused, PausedAt: &pausedAt},
		{ID: "s3", RequesterID: "c", StationID: "st-1", StartTime: epoch.Add(-time.Hour),
			Status: models.SessionStatusCompleted},
	} {
		require.NoError(t, f.repo.InsertSession(context.Background(), s))
	}

	n, err := f.sessions.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, _, err := f.sessions.Status("a", "st-1")
	require.NoError(t, err)
	assert.InDelta(t, 35.0, active.CurrentBatteryLevel, 1e-9)

	f.clock.Advance(5 * time.Minute)
	paused, _, err := f.sessions.Status("b", "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, paused.Status)
	assert.Equal(t, 5*time.Minute+5*time.Minute, paused.PausedTotal)
}

func TestProgressModelTapersAboveThreshold(t *testing.T) {
	m := DefaultProgressModel()
	m.TaperThreshold = 50

	below := m.Compute(30*time.Minute, 80, 30, 10)
	assert.Equal(t, 30.0, below.ChargingRate)
	above := m.Compute(90*time.Minute, 80, 30, 10)
	assert.InDelta(t, 65.0, above.BatteryLevel, 1e-9)
	assert.Equal(t, 15.0, above.ChargingRate)

	done := m.Compute(3*time.Hour, 80, 30, 10)
	assert.True(t, done.TargetReached)
	assert.Equal(t, 80.0, done.BatteryLevel)
	assert.Equal(t, 2*time.Hour, m.TimeToTarget(80, 30))

	assert.Equal(t, 90.0, m.Efficiency(1000))
	assert.InDelta(t, 97.0, m.Efficiency(30), 1e-9)
}

func TestTariffAppliesFeeFloor(t *testing.T) {
	tariff := DefaultTariff()

	small := tariff.Breakdown(1, 10)
	assert.InDelta(t, 5.0, small.PlatformFee, 1e-9)
	assert.InDelta(t, (10+5)*1.18, small.TotalCost, 1e-9)

	large := tariff.Breakdown(100, 10)
	assert.InDelta(t, 50.0, large.PlatformFee, 1e-9)
	assert.InDelta(t, 1239.0, large.TotalCost, 1e-9)

	assert.Equal(t, 12.35, Round2(12.345000001))
}

func TestSessionIDIsStable(t *testing.T) {
	id := SessionID("a", "st-1", epoch)
	assert.Len(t, id, 32)
	assert.Equal(t, id, SessionID("a", "st-1", epoch))
	assert.NotEqual(t, id, SessionID("a", "st-1", epoch.Add(time.Nanosecond)))
}
