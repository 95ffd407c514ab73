package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/clock"
	"chargequeue/backend/services/queue-service/internal/models"
)

// Stop reasons recorded on finished sessions.
const (
	StopReasonRequested  = "requested"
	StopReasonStale      = "stale"
	CompleteReasonTarget = "target_reached"
)

// SessionOptions holds the session scheduling and settlement parameters.
type SessionOptions struct {
	TickInterval       time.Duration
	ProgressEvery      time.Duration
	CheckpointEvery    time.Duration
	AutoResumeAfter    time.Duration
	StaleAfter         time.Duration
	SweepInterval      time.Duration
	TargetBatteryLevel float64
	Model              ProgressModel
	Tariff             Tariff
}

// DefaultSessionOptions returns the stock scheduling parameters.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		TickInterval:       30 * time.Second,
		ProgressEvery:      10 * time.Minute,
		CheckpointEvery:    5 * time.Minute,
		AutoResumeAfter:    10 * time.Minute,
		StaleAfter:         24 * time.Hour,
		SweepInterval:      time.Hour,
		TargetBatteryLevel: 80,
		Model:              DefaultProgressModel(),
		Tariff:             DefaultTariff(),
	}
}

// QueueCloser frees the station once a session ends.
type QueueCloser interface {
	CompleteCharging(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error)
}

// SessionService runs charging sessions: it simulates progress on a tick, settles cost and
// closes the queue entry when a session ends.
type SessionService struct {
	repo     SessionRepository
	stations StationDirectory
	queue    QueueCloser
	clock    clock.Clock
	opts     SessionOptions
	logger   *zap.Logger
	collaborators

	mu      sync.Mutex
	live    map[string]*liveSession
	sweeper *ticker
}

// liveSession is one open session and the timers it owns. mu guards every field.
type liveSession struct {
	key string

	mu             sync.Mutex
	session        *models.ChargingSession
	tick           *ticker
	resume         clock.Timer
	progressMark   int64
	checkpointMark int64
	closed         bool
}

// NewSessionService builds the session engine.
func NewSessionService(
	repo SessionRepository,
	stations StationDirectory,
	queue QueueCloser,
	clk clock.Clock,
	opts SessionOptions,
	logger *zap.Logger,
	extras ...Option,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:          repo,
		stations:      stations,
		queue:         queue,
		clock:         clk,
		opts:          opts,
		logger:        logger,
		collaborators: newCollaborators(extras),
		live:          make(map[string]*liveSession),
	}
}

func (s *SessionService) lookup(requesterID, stationID string) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[pairKey(requesterID, stationID)]
}

func (s *SessionService) remove(ls *liveSession) {
	s.mu.Lock()
	if s.live[ls.key] == ls {
		delete(s.live, ls.key)
	}
	n := len(s.live)
	s.mu.Unlock()
	s.metrics.LiveSessions(n)
}

// Start opens a session for the pair, or returns the open one unchanged.
func (s *SessionService) Start(ctx context.Context, requesterID, stationID, queueEntryID string) (*models.ChargingSession, error) {
	key := pairKey(requesterID, stationID)

	s.mu.Lock()
	if existing, ok := s.live[key]; ok {
		s.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		if existing.closed {
			return nil, notEligible("session for %s at %s is closing", requesterID, stationID)
		}
		if existing.session.Status == models.SessionStatusActive && existing.tick == nil {
			s.startTickLocked(existing)
		}
		return existing.session.Clone(), nil
	}
	ls := &liveSession{key: key}
	ls.mu.Lock()
	s.live[key] = ls
	s.mu.Unlock()
	defer ls.mu.Unlock()

	sess, err := s.open(ctx, requesterID, stationID, queueEntryID)
	if err != nil {
		ls.closed = true
		s.remove(ls)
		return nil, err
	}
	ls.session = sess
	s.startTickLocked(ls)

	s.mu.Lock()
	n := len(s.live)
	s.mu.Unlock()
	s.metrics.LiveSessions(n)

	if err := s.mirror.SaveSession(ctx, sess); err != nil {
		s.logger.Warn("failed to mirror session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("station_id", stationID),
		zap.String("requester_id", requesterID),
		zap.Float64("rated_power_kw", sess.RatedPowerKW),
	)
	s.publish(sess, sess.StartTime, models.SessionStarted{
		SessionID:          sess.ID,
		BatteryLevel:       sess.CurrentBatteryLevel,
		TargetBatteryLevel: sess.TargetBatteryLevel,
		ChargingRate:       sess.ChargingRate,
		PricePerUnit:       sess.PricePerUnit,
	})
	return sess.Clone(), nil
}

func (s *SessionService) open(ctx context.Context, requesterID, stationID, queueEntryID string) (*models.ChargingSession, error) {
	st, err := s.stations.GetStation(ctx, stationID)
	if err != nil {
		return nil, persistenceError("get station", err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: station %s", ErrNotFound, stationID)
	}

	now := s.clock.Now()
	sess := &models.ChargingSession{
		ID:                  SessionID(requesterID, stationID, now),
		RequesterID:         requesterID,
		StationID:           stationID,
		QueueEntryID:        queueEntryID,
		StartTime:           now,
		CurrentBatteryLevel: s.opts.Model.InitialBatteryLevel,
		TargetBatteryLevel:  s.opts.TargetBatteryLevel,
		RatedPowerKW:        st.RatedPowerKW,
		ChargingRate:        st.RatedPowerKW,
		PricePerUnit:        st.PricePerUnit,
		Status:              models.SessionStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.apply(sess, now)

	if err := s.repo.InsertSession(ctx, sess); err != nil {
		return nil, persistenceError("insert session", err)
	}
	return sess, nil
}

// chargingElapsed is wall time since start minus every paused interval.
func chargingElapsed(sess *models.ChargingSession, now time.Time) time.Duration {
	elapsed := now.Sub(sess.StartTime) - sess.PausedTotal
	if sess.PausedAt != nil {
		elapsed -= now.Sub(*sess.PausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// apply re-derives progress for sess at now. The battery level never moves backwards
// and never passes the target.
func (s *SessionService) apply(sess *models.ChargingSession, now time.Time) models.Progress {
	elapsed := chargingElapsed(sess, now)
	p := s.opts.Model.Compute(elapsed, sess.TargetBatteryLevel, sess.RatedPowerKW, sess.PricePerUnit)

	level := math.Min(math.Max(p.BatteryLevel, sess.CurrentBatteryLevel), sess.TargetBatteryLevel)
	if level != p.BatteryLevel {
		p.BatteryLevel = level
		p.EnergyAdded = s.opts.Model.Energy(level)
		p.CurrentCost = p.EnergyAdded * sess.PricePerUnit
	}
	p.TargetReached = level >= sess.TargetBatteryLevel
	if sess.Status == models.SessionStatusPaused {
		p.ChargingRate = 0
	}

	sess.CurrentBatteryLevel = level
	sess.ChargingRate = p.ChargingRate
	sess.EnergyDelivered = p.EnergyAdded
	sess.Efficiency = p.Efficiency
	sess.TotalCost = s.opts.Tariff.Breakdown(sess.EnergyDelivered, sess.PricePerUnit).TotalCost
	sess.UpdatedAt = now
	return p
}

func (s *SessionService) startTickLocked(ls *liveSession) {
	if ls.tick != nil {
		ls.tick.Stop()
	}
	elapsed := chargingElapsed(ls.session, s.clock.Now())
	ls.progressMark = int64(elapsed / s.opts.ProgressEvery)
	ls.checkpointMark = int64(elapsed / s.opts.CheckpointEvery)
	sessionID := ls.session.ID
	ls.tick = startTicker(s.clock, s.opts.TickInterval, func() { s.onTick(ls) }, func(r interface{}) {
		s.logger.Error("session tick panicked", zap.String("session_id", sessionID), zap.Any("panic", r))
	})
}

func (s *SessionService) stopTickLocked(ls *liveSession) {
	if ls.tick != nil {
		ls.tick.Stop()
		ls.tick = nil
	}
}

// onTick advances one active session.
func (s *SessionService) onTick(ls *liveSession) {
	ctx, cancel := context.WithTimeout(context.Background(), timerCallbackTimeout)
	defer cancel()

	ls.mu.Lock()
	if ls.closed || ls.session == nil || ls.session.Status != models.SessionStatusActive {
		ls.mu.Unlock()
		return
	}
	sess := ls.session
	now := s.clock.Now()
	p := s.apply(sess, now)

	if p.TargetReached {
		summary, err := s.finishLocked(ctx, ls, models.SessionStatusCompleted, CompleteReasonTarget)
		ls.mu.Unlock()
		if err != nil {
			s.logger.Warn("auto completion failed, retrying on next tick", zap.String("session_id", sess.ID), zap.Error(err))
			return
		}
		s.afterFinish(ctx, ls, summary, CompleteReasonTarget, true)
		return
	}

	elapsed := chargingElapsed(sess, now)
	if mark := int64(elapsed / s.opts.ProgressEvery); mark > ls.progressMark {
		ls.progressMark = mark
		s.publish(sess, now, models.SessionProgress{
			SessionID: sess.ID,
			Progress:  p,
			Cost:      s.opts.Tariff.Breakdown(sess.EnergyDelivered, sess.PricePerUnit),
		})
	}
	if mark := int64(elapsed / s.opts.CheckpointEvery); mark > ls.checkpointMark {
		ls.checkpointMark = mark
		s.checkpointLocked(ctx, sess)
	}
	ls.mu.Unlock()
}

// checkpointLocked persists progress. Failures are logged: the session keeps running in memory.
func (s *SessionService) checkpointLocked(ctx context.Context, sess *models.ChargingSession) {
	if err := s.repo.UpdateSession(ctx, sess.ID, models.PatchOf(sess), false); err != nil {
		s.logger.Warn("session checkpoint failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := s.mirror.SaveSession(ctx, sess); err != nil {
		s.logger.Warn("failed to mirror session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// transitionLocked persists next and only then swaps it in.
func (s *SessionService) transitionLocked(ctx context.Context, ls *liveSession, next *models.ChargingSession, op string) error {
	if err := s.repo.UpdateSession(ctx, next.ID, models.PatchOf(next), false); err != nil {
		return persistenceError(op, err)
	}
	ls.session = next
	return nil
}

// Pause stops progress and arms the automatic resume. It reports false when the session is not active.
func (s *SessionService) Pause(ctx context.Context, requesterID, stationID string) (bool, error) {
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return false, err
	}
	defer ls.mu.Unlock()
	if ls.session.Status != models.SessionStatusActive {
		return false, nil
	}

	now := s.clock.Now()
	next := ls.session.Clone()
	s.apply(next, now)
	next.Status = models.SessionStatusPaused
	next.PausedAt = &now
	next.ChargingRate = 0
	if err := s.transitionLocked(ctx, ls, next, "pause session"); err != nil {
		return false, err
	}

	s.stopTickLocked(ls)
	resumeAt := now.Add(s.opts.AutoResumeAfter)
	s.armAutoResumeLocked(ls, s.opts.AutoResumeAfter)

	s.logger.Info("session paused", zap.String("session_id", next.ID), zap.Time("auto_resume_at", resumeAt))
	s.publish(next, now, models.SessionPaused{SessionID: next.ID, AutoResumeAt: resumeAt})
	return true, nil
}

// Resume restarts progress. It reports false when the session is not paused.
func (s *SessionService) Resume(ctx context.Context, requesterID, stationID string) (bool, error) {
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return false, err
	}
	defer ls.mu.Unlock()
	if ls.session.Status != models.SessionStatusPaused {
		return false, nil
	}
	if err := s.resumeLocked(ctx, ls, false); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionService) resumeLocked(ctx context.Context, ls *liveSession, automatic bool) error {
	now := s.clock.Now()
	next := ls.session.Clone()
	if next.PausedAt != nil {
		next.PausedTotal += now.Sub(*next.PausedAt)
		next.PausedAt = nil
	}
	next.Status = models.SessionStatusActive
	s.apply(next, now)
	if err := s.transitionLocked(ctx, ls, next, "resume session"); err != nil {
		return err
	}

	if ls.resume != nil {
		ls.resume.Stop()
		ls.resume = nil
	}
	s.startTickLocked(ls)

	s.logger.Info("session resumed", zap.String("session_id", next.ID), zap.Bool("automatic", automatic))
	s.publish(next, now, models.SessionResumed{SessionID: next.ID, Automatic: automatic})
	return nil
}

func (s *SessionService) armAutoResumeLocked(ls *liveSession, after time.Duration) {
	if ls.resume != nil {
		ls.resume.Stop()
	}
	sessionID := ls.session.ID
	var timer clock.Timer
	timer = s.clock.AfterFunc(after, func() { s.onAutoResume(ls, sessionID, &timer) })
	ls.resume = timer
}

func (s *SessionService) onAutoResume(ls *liveSession, sessionID string, self *clock.Timer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto resume panicked", zap.String("session_id", sessionID), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), timerCallbackTimeout)
	defer cancel()

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed || ls.session.ID != sessionID || ls.session.Status != models.SessionStatusPaused || ls.resume != *self {
		return
	}
	ls.resume = nil
	if err := s.resumeLocked(ctx, ls, true); err != nil {
		s.logger.Warn("auto resume failed, retrying", zap.String("session_id", sessionID), zap.Error(err))
		s.armAutoResumeLocked(ls, s.opts.TickInterval)
	}
}

// Extend raises the battery target of an active session.
func (s *SessionService) Extend(ctx context.Context, requesterID, stationID string, newTarget float64) (*models.ChargingSession, error) {
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if ls.session.Status != models.SessionStatusActive {
		return nil, notEligible("session is %s", ls.session.Status)
	}
	if newTarget <= ls.session.TargetBatteryLevel || newTarget > 100 {
		return nil, notEligible("target %.1f must exceed %.1f and not exceed 100", newTarget, ls.session.TargetBatteryLevel)
	}

	now := s.clock.Now()
	next := ls.session.Clone()
	s.apply(next, now)
	next.TargetBatteryLevel = newTarget
	s.apply(next, now)
	if err := s.transitionLocked(ctx, ls, next, "extend session"); err != nil {
		return nil, err
	}

	s.logger.Info("session extended", zap.String("session_id", next.ID), zap.Float64("target", newTarget))
	s.publish(next, now, models.SessionExtended{SessionID: next.ID, TargetBatteryLevel: newTarget})
	return next.Clone(), nil
}

// Complete finishes an active session as completed. Closing the queue entry is left to the caller.
func (s *SessionService) Complete(ctx context.Context, requesterID, stationID string) (*models.SessionSummary, error) {
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return nil, err
	}
	if ls.session.Status != models.SessionStatusActive {
		status := ls.session.Status
		ls.mu.Unlock()
		return nil, notEligible("session is %s", status)
	}
	summary, err := s.finishLocked(ctx, ls, models.SessionStatusCompleted, CompleteReasonTarget)
	ls.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterFinish(ctx, ls, summary, CompleteReasonTarget, false)
	return summary, nil
}

// Stop ends an active or paused session early with partial billing and frees the station.
func (s *SessionService) Stop(ctx context.Context, requesterID, stationID, reason string) (*models.SessionSummary, error) {
	if reason == "" {
		reason = StopReasonRequested
	}
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return nil, err
	}
	summary, err := s.finishLocked(ctx, ls, models.SessionStatusStopped, reason)
	ls.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterFinish(ctx, ls, summary, reason, true)
	return summary, nil
}

// finishLocked settles the session and persists the final record. The session stays live if
// the write fails.
func (s *SessionService) finishLocked(ctx context.Context, ls *liveSession, status models.SessionStatus, reason string) (*models.SessionSummary, error) {
	now := s.clock.Now()
	final := ls.session.Clone()
	s.apply(final, now)
	if final.PausedAt != nil {
		final.PausedTotal += now.Sub(*final.PausedAt)
		final.PausedAt = nil
	}
	final.Status = status
	final.EndTime = &now
	final.ChargingRate = 0
	cost := s.opts.Tariff.Breakdown(final.EnergyDelivered, final.PricePerUnit)
	final.TotalCost = cost.TotalCost

	if err := s.repo.UpdateSession(ctx, final.ID, models.PatchOf(final), true); err != nil {
		return nil, persistenceError("finalize session", err)
	}

	ls.closed = true
	ls.session = final
	s.stopTickLocked(ls)
	if ls.resume != nil {
		ls.resume.Stop()
		ls.resume = nil
	}

	s.logger.Info("session finished",
		zap.String("session_id", final.ID),
		zap.String("status", string(status)),
		zap.String("reason", reason),
		zap.Float64("energy", final.EnergyDelivered),
		zap.Float64("total_cost", final.TotalCost),
	)
	return &models.SessionSummary{
		SessionID:         final.ID,
		Status:            status,
		Duration:          now.Sub(final.StartTime),
		EnergyDelivered:   final.EnergyDelivered,
		FinalBatteryLevel: final.CurrentBatteryLevel,
		Cost:              cost,
		Efficiency:        final.Efficiency,
	}, nil
}

// afterFinish runs the non-critical follow-ups of a finished session outside its lock.
func (s *SessionService) afterFinish(ctx context.Context, ls *liveSession, summary *models.SessionSummary, reason string, closeQueue bool) {
	s.remove(ls)

	ls.mu.Lock()
	final := ls.session.Clone()
	ls.mu.Unlock()

	if err := s.mirror.DeleteSession(ctx, final); err != nil {
		s.logger.Warn("failed to drop mirrored session", zap.String("session_id", final.ID), zap.Error(err))
	}
	s.metrics.SessionFinished(summary.Status, summary.EnergyDelivered)
	s.publish(final, *final.EndTime, models.SessionFinished{Summary: *summary, Reason: reason})

	if !closeQueue || s.queue == nil {
		return
	}
	if _, err := s.queue.CompleteCharging(ctx, final.RequesterID, final.StationID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotEligible) {
			s.logger.Debug("no charging queue entry to close", zap.String("session_id", final.ID), zap.Error(err))
			return
		}
		s.logger.Warn("failed to close queue entry", zap.String("session_id", final.ID), zap.Error(err))
	}
}

// acquire returns the open live session for the pair with its lock held.
func (s *SessionService) acquire(requesterID, stationID string) (*liveSession, error) {
	ls := s.lookup(requesterID, stationID)
	if ls == nil {
		return nil, fmt.Errorf("%w: no open session for %s at %s", ErrNotFound, requesterID, stationID)
	}
	ls.mu.Lock()
	if ls.closed || ls.session == nil {
		ls.mu.Unlock()
		return nil, fmt.Errorf("%w: no open session for %s at %s", ErrNotFound, requesterID, stationID)
	}
	return ls, nil
}

// Status re-derives and returns the pair's open session with its current progress.
func (s *SessionService) Status(requesterID, stationID string) (*models.ChargingSession, models.Progress, error) {
	ls, err := s.acquire(requesterID, stationID)
	if err != nil {
		return nil, models.Progress{}, err
	}
	defer ls.mu.Unlock()
	p := s.apply(ls.session, s.clock.Now())
	return ls.session.Clone(), p, nil
}

// Cost returns the live cost breakdown of the pair's open session.
func (s *SessionService) Cost(requesterID, stationID string) (models.CostBreakdown, error) {
	sess, _, err := s.Status(requesterID, stationID)
	if err != nil {
		return models.CostBreakdown{}, err
	}
	return s.opts.Tariff.Breakdown(sess.EnergyDelivered, sess.PricePerUnit), nil
}

// Active lists every open session, oldest first.
func (s *SessionService) Active() []models.ChargingSession {
	s.mu.Lock()
	list := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		list = append(list, ls)
	}
	s.mu.Unlock()

	now := s.clock.Now()
	out := make([]models.ChargingSession, 0, len(list))
	for _, ls := range list {
		ls.mu.Lock()
		if !ls.closed && ls.session != nil {
			s.apply(ls.session, now)
			out = append(out, *ls.session.Clone())
		}
		ls.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// SweepStale stops every open session that started more than StaleAfter ago.
func (s *SessionService) SweepStale(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.opts.StaleAfter)
	swept := 0
	for _, sess := range s.Active() {
		if sess.StartTime.After(cutoff) {
			continue
		}
		if _, err := s.Stop(ctx, sess.RequesterID, sess.StationID, StopReasonStale); err != nil {
			s.logger.Warn("failed to stop stale session", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("stale sessions swept", zap.Int("count", swept))
	}
	return swept
}

// StartSweeper runs SweepStale every SweepInterval until Shutdown.
func (s *SessionService) StartSweeper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweeper != nil {
		return
	}
	s.sweeper = startTicker(s.clock, s.opts.SweepInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.SweepStale(ctx)
	}, func(r interface{}) {
		s.logger.Error("stale sweep panicked", zap.Any("panic", r))
	})
}

// Restore reloads open sessions, resuming ticks for active ones and auto-resume timers for
// paused ones. It returns the number of restored sessions.
func (s *SessionService) Restore(ctx context.Context) (int, error) {
	sessions, err := s.repo.ListOpenSessions(ctx)
	if err != nil {
		return 0, persistenceError("list open sessions", err)
	}
	now := s.clock.Now()
	restored := 0
	for i := range sessions {
		sess := sessions[i].Clone()
		ls := &liveSession{key: pairKey(sess.RequesterID, sess.StationID), session: sess}

		s.mu.Lock()
		if _, dup := s.live[ls.key]; dup {
			s.mu.Unlock()
			s.logger.Warn("duplicate open session while restoring", zap.String("session_id", sess.ID))
			continue
		}
		s.live[ls.key] = ls
		s.mu.Unlock()

		ls.mu.Lock()
		switch sess.Status {
		case models.SessionStatusActive:
			s.apply(sess, now)
			s.startTickLocked(ls)
		case models.SessionStatusPaused:
			remaining := s.opts.AutoResumeAfter
			if sess.PausedAt != nil {
				remaining = sess.PausedAt.Add(s.opts.AutoResumeAfter).Sub(now)
			}
			s.armAutoResumeLocked(ls, remaining)
		}
		ls.mu.Unlock()
		restored++
	}

	s.mu.Lock()
	n := len(s.live)
	s.mu.Unlock()
	s.metrics.LiveSessions(n)
	s.logger.Info("sessions restored", zap.Int("sessions", restored))
	return restored, nil
}

// Shutdown cancels every timer owned by the engine. Sessions stay open in the store.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	if s.sweeper != nil {
		s.sweeper.Stop()
		s.sweeper = nil
	}
	list := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		list = append(list, ls)
	}
	s.mu.Unlock()

	for _, ls := range list {
		ls.mu.Lock()
		s.stopTickLocked(ls)
		if ls.resume != nil {
			ls.resume.Stop()
			ls.resume = nil
		}
		ls.mu.Unlock()
	}
}

func (s *SessionService) publish(sess *models.ChargingSession, at time.Time, payload models.EventPayload) {
	s.publisher.Publish(models.NewEvent(sess.RequesterID, sess.StationID, at, payload))
}
