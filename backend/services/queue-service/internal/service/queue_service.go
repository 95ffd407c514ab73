package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/clock"
	"chargequeue/backend/services/queue-service/internal/models"
)

// Departure reasons accepted by Leave.
const (
	ReasonCancelled = "cancelled"
	ReasonExpired   = "expired"
	ReasonCompleted = "completed"
)

const (
	timerCallbackTimeout = 10 * time.Second
	expiryRetryDelay     = 30 * time.Second
)

// QueueOptions holds the admission rules.
type QueueOptions struct {
	ReservationWindow time.Duration
	BaseWaitMinutes   int
}

// QueueService owns the ordered admission queue of every station.
type QueueService struct {
	repo     QueueRepository
	stations StationDirectory
	clock    clock.Clock
	opts     QueueOptions
	logger   *zap.Logger
	collaborators

	mu     sync.Mutex
	queues map[string]*stationQueue
}

// stationQueue is the live state of one station. mu serializes every structural change.
type stationQueue struct {
	id string

	mu         sync.Mutex
	avgMinutes int
	entries    map[string]*models.QueueEntry
	expiry     map[string]clock.Timer
}

// NewQueueService builds the queue store.
func NewQueueService(
	repo QueueRepository,
	stations StationDirectory,
	clk clock.Clock,
	opts QueueOptions,
	logger *zap.Logger,
	extras ...Option,
) *QueueService {
	if opts.ReservationWindow <= 0 {
		opts.ReservationWindow = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		repo:          repo,
		stations:      stations,
		clock:         clk,
		opts:          opts,
		logger:        logger,
		collaborators: newCollaborators(extras),
		queues:        make(map[string]*stationQueue),
	}
}

// EstimateWait returns the expected wait for an entry at position.
func EstimateWait(position, averageSessionMinutes, baseMinutes int) int {
	if position <= 1 {
		return baseMinutes
	}
	return (position-1)*averageSessionMinutes + baseMinutes
}

func (s *QueueService) station(stationID string) *stationQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.queues[stationID]
	if !ok {
		sq = &stationQueue{
			id:      stationID,
			entries: make(map[string]*models.QueueEntry),
			expiry:  make(map[string]clock.Timer),
		}
		s.queues[stationID] = sq
	}
	return sq
}

func (s *QueueService) resolveStation(ctx context.Context, stationID string) (*models.Station, error) {
	st, err := s.stations.GetStation(ctx, stationID)
	if err != nil {
		return nil, persistenceError("get station", err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: station %s", ErrNotFound, stationID)
	}
	return st, nil
}

// Join admits requesterID to the station queue, or moves their open entry to the tail.
func (s *QueueService) Join(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error) {
	entry, err := s.join(ctx, requesterID, stationID)
	s.metrics.JoinResult(stationID, err)
	return entry, err
}

func (s *QueueService) join(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error) {
	st, err := s.resolveStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !st.Accepting() {
		return nil, fmt.Errorf("%w: station %s is not accepting requests", ErrResourceUnavailable, stationID)
	}

	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.avgMinutes = st.AverageSessionMinutes

	existing := sq.entries[requesterID]
	if existing != nil && existing.Status == models.QueueStatusCharging {
		return nil, notEligible("entry is charging, stop the session first")
	}
	if st.MaxQueueLength > 0 && sq.pendingCount(existing) >= st.MaxQueueLength {
		return nil, fmt.Errorf("%w: station %s holds %d requests", ErrQueueFull, stationID, st.MaxQueueLength)
	}

	now := s.clock.Now()
	if existing != nil {
		return s.requeueLocked(ctx, sq, existing, now)
	}

	position := sq.maxPosition() + 1
	entry := &models.QueueEntry{
		ID:                   uuid.NewString(),
		StationID:            stationID,
		RequesterID:          requesterID,
		Position:             position,
		Status:               models.QueueStatusWaiting,
		EstimatedWaitMinutes: EstimateWait(position, sq.avgMinutes, s.opts.BaseWaitMinutes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.InsertQueueEntry(ctx, entry); err != nil {
		return nil, persistenceError("insert queue entry", err)
	}
	sq.entries[requesterID] = entry

	s.logger.Info("queue joined",
		zap.String("station_id", stationID),
		zap.String("requester_id", requesterID),
		zap.Int("position", position),
	)
	s.publish(entry, now, models.QueueJoined{
		EntryID:              entry.ID,
		Position:             entry.Position,
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
	})
	// Joining behind a station that is only charging picks up the free reservation slot.
	// The head of an idle station still has to reserve explicitly.
	if position > 1 && nextEligible(sq.ordered()) == entry {
		s.promoteLocked(ctx, sq)
	}
	s.afterChangeLocked(ctx, sq)
	return entry.Clone(), nil
}

// requeueLocked moves an open entry to the tail as waiting.
func (s *QueueService) requeueLocked(ctx context.Context, sq *stationQueue, existing *models.QueueEntry, now time.Time) (*models.QueueEntry, error) {
	vacated := existing.Position
	prevStatus := existing.Status
	tail := len(sq.entries)

	updated := existing.Clone()
	updated.Position = tail
	updated.Status = models.QueueStatusWaiting
	updated.ReservationExpiry = nil
	updated.EstimatedWaitMinutes = EstimateWait(tail, sq.avgMinutes, s.opts.BaseWaitMinutes)
	updated.UpdatedAt = now

	if err := s.repo.MoveQueueEntry(ctx, updated, vacated); err != nil {
		return nil, persistenceError("requeue entry", err)
	}

	s.stopExpiryLocked(sq, existing.ID)
	delete(sq.entries, existing.RequesterID)
	moved := sq.closeGap(vacated)
	*existing = *updated
	sq.entries[existing.RequesterID] = existing

	s.logger.Info("queue rejoined",
		zap.String("station_id", sq.id),
		zap.String("requester_id", existing.RequesterID),
		zap.Int("from", vacated),
		zap.Int("to", tail),
	)
	s.refreshEstimatesLocked(ctx, sq, moved, now)
	s.publish(existing, now, models.QueueJoined{
		EntryID:              existing.ID,
		Position:             existing.Position,
		EstimatedWaitMinutes: existing.EstimatedWaitMinutes,
		Rejoined:             true,
	})
	// A released reservation goes to whoever is now eligible, never back
	// to the requester who just gave it up.
	if prevStatus != models.QueueStatusWaiting {
		if next := nextEligible(sq.ordered()); next != nil && next != existing {
			s.promoteLocked(ctx, sq)
		}
	}
	s.afterChangeLocked(ctx, sq)
	return existing.Clone(), nil
}

// Leave removes the requester's open entry. It reports false when there is nothing to cancel.
func (s *QueueService) Leave(ctx context.Context, requesterID, stationID, reason string) (bool, error) {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	entry := sq.entries[requesterID]
	if entry == nil {
		return false, nil
	}
	if entry.Status == models.QueueStatusCharging {
		return false, notEligible("entry is charging, stop the session first")
	}
	// Only a departure that frees the reservation slot or the head hands out a new one.
	freesSlot := entry.Status == models.QueueStatusReserved || nextEligible(sq.ordered()) == entry
	if err := s.departLocked(ctx, sq, entry, reason); err != nil {
		return false, err
	}
	if freesSlot {
		s.promoteLocked(ctx, sq)
	}
	s.afterChangeLocked(ctx, sq)
	return true, nil
}

// departLocked marks entry terminal and repairs the ordering behind it.
func (s *QueueService) departLocked(ctx context.Context, sq *stationQueue, entry *models.QueueEntry, reason string) error {
	if reason == "" {
		reason = ReasonCancelled
	}
	status := models.QueueStatusCancelled
	if reason == ReasonCompleted {
		status = models.QueueStatusCompleted
	}

	now := s.clock.Now()
	updated := entry.Clone()
	updated.Status = status
	updated.ReservationExpiry = nil
	updated.UpdatedAt = now

	if err := s.repo.MoveQueueEntry(ctx, updated, entry.Position); err != nil {
		return persistenceError("depart queue entry", err)
	}

	s.stopExpiryLocked(sq, entry.ID)
	delete(sq.entries, entry.RequesterID)
	moved := sq.closeGap(entry.Position)
	*entry = *updated

	s.logger.Info("queue left",
		zap.String("station_id", sq.id),
		zap.String("requester_id", entry.RequesterID),
		zap.String("reason", reason),
		zap.Int("position", entry.Position),
	)
	if reason == ReasonExpired {
		s.publish(entry, now, models.ReservationExpired{EntryID: entry.ID, ExpiredAt: now})
	} else {
		s.publish(entry, now, models.QueueLeft{
			EntryID:  entry.ID,
			Reason:   reason,
			Status:   status,
			Position: entry.Position,
		})
	}
	s.refreshEstimatesLocked(ctx, sq, moved, now)
	return nil
}

// Reserve grants the head-of-queue requester a time-bounded hold on the station.
func (s *QueueService) Reserve(ctx context.Context, requesterID, stationID string, window time.Duration) (*models.QueueEntry, error) {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	entry := sq.entries[requesterID]
	if entry == nil {
		return nil, fmt.Errorf("%w: no open entry for %s at %s", ErrNotFound, requesterID, stationID)
	}
	if entry.Position != 1 || entry.Status != models.QueueStatusWaiting {
		return nil, notEligible("entry is %s at position %d", entry.Status, entry.Position)
	}
	if err := s.reserveLocked(ctx, sq, entry, window, false); err != nil {
		return nil, err
	}
	s.afterChangeLocked(ctx, sq)
	return entry.Clone(), nil
}

func (s *QueueService) reserveLocked(ctx context.Context, sq *stationQueue, entry *models.QueueEntry, window time.Duration, promoted bool) error {
	if window <= 0 {
		window = s.opts.ReservationWindow
	}
	now := s.clock.Now()
	expiry := now.Add(window)
	status := models.QueueStatusReserved

	if err := s.repo.UpdateQueueEntry(ctx, entry.ID, models.QueueEntryPatch{
		Status:            &status,
		ReservationExpiry: &expiry,
		UpdatedAt:         now,
	}); err != nil {
		return persistenceError("reserve entry", err)
	}

	entry.Status = status
	entry.ReservationExpiry = &expiry
	entry.UpdatedAt = now
	s.armExpiryLocked(sq, entry)

	s.logger.Info("reservation granted",
		zap.String("station_id", sq.id),
		zap.String("requester_id", entry.RequesterID),
		zap.Int("position", entry.Position),
		zap.Time("expires_at", expiry),
		zap.Bool("promoted", promoted),
	)
	s.publish(entry, now, models.ReservationGranted{
		EntryID:       entry.ID,
		Position:      entry.Position,
		ExpiresAt:     expiry,
		WindowMinutes: int(window / time.Minute),
		Promoted:      promoted,
	})
	return nil
}

// StartCharging moves a reserved entry to charging and hands the next reservation out.
func (s *QueueService) StartCharging(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error) {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	entry := sq.entries[requesterID]
	if entry == nil {
		return nil, fmt.Errorf("%w: no open entry for %s at %s", ErrNotFound, requesterID, stationID)
	}
	if entry.Status != models.QueueStatusReserved {
		return nil, notEligible("entry is %s, not reserved", entry.Status)
	}
	for _, other := range sq.entries {
		if other != entry && other.Status == models.QueueStatusCharging {
			return nil, notEligible("station is in use by another requester")
		}
	}

	now := s.clock.Now()
	status := models.QueueStatusCharging
	if err := s.repo.UpdateQueueEntry(ctx, entry.ID, models.QueueEntryPatch{
		Status:           &status,
		ClearReservation: true,
		UpdatedAt:        now,
	}); err != nil {
		return nil, persistenceError("start charging", err)
	}

	s.stopExpiryLocked(sq, entry.ID)
	entry.Status = status
	entry.ReservationExpiry = nil
	entry.UpdatedAt = now

	s.logger.Info("charging started",
		zap.String("station_id", stationID),
		zap.String("requester_id", requesterID),
	)
	s.publish(entry, now, models.ChargingStarted{EntryID: entry.ID})
	s.promoteLocked(ctx, sq)
	s.afterChangeLocked(ctx, sq)
	return entry.Clone(), nil
}

// CompleteCharging closes a charging entry and frees the station for the next requester.
func (s *QueueService) CompleteCharging(ctx context.Context, requesterID, stationID string) (*models.QueueEntry, error) {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	entry := sq.entries[requesterID]
	if entry == nil {
		return nil, fmt.Errorf("%w: no open entry for %s at %s", ErrNotFound, requesterID, stationID)
	}
	if entry.Status != models.QueueStatusCharging {
		return nil, notEligible("entry is %s, not charging", entry.Status)
	}
	if err := s.departLocked(ctx, sq, entry, ReasonCompleted); err != nil {
		return nil, err
	}
	s.promoteLocked(ctx, sq)
	s.afterChangeLocked(ctx, sq)
	return entry.Clone(), nil
}

// Status returns the requester's open entry at the station.
func (s *QueueService) Status(requesterID, stationID string) (*models.QueueEntry, error) {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()
	entry := sq.entries[requesterID]
	if entry == nil {
		return nil, fmt.Errorf("%w: no open entry for %s at %s", ErrNotFound, requesterID, stationID)
	}
	return entry.Clone(), nil
}

// Snapshot returns the open entries of a station in position order.
func (s *QueueService) Snapshot(stationID string) []models.QueueEntry {
	sq := s.station(stationID)
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.snapshot()
}

// Shutdown stops every reservation timer. Reservations stay in the store and are re-armed by Restore.
func (s *QueueService) Shutdown() {
	s.mu.Lock()
	queues := make([]*stationQueue, 0, len(s.queues))
	for _, sq := range s.queues {
		queues = append(queues, sq)
	}
	s.mu.Unlock()

	for _, sq := range queues {
		sq.mu.Lock()
		for id := range sq.expiry {
			s.stopExpiryLocked(sq, id)
		}
		sq.mu.Unlock()
	}
}

func (s *QueueService) armExpiryLocked(sq *stationQueue, entry *models.QueueEntry) {
	s.stopExpiryLocked(sq, entry.ID)
	if entry.ReservationExpiry == nil {
		return
	}
	delay := entry.ReservationExpiry.Sub(s.clock.Now())
	s.scheduleExpiryLocked(sq, entry.RequesterID, entry.ID, delay)
}

func (s *QueueService) scheduleExpiryLocked(sq *stationQueue, requesterID, entryID string, delay time.Duration) {
	sq.expiry[entryID] = s.clock.AfterFunc(delay, func() {
		s.onReservationTimer(sq, requesterID, entryID)
	})
}

func (s *QueueService) stopExpiryLocked(sq *stationQueue, entryID string) {
	if t, ok := sq.expiry[entryID]; ok {
		t.Stop()
		delete(sq.expiry, entryID)
	}
}

// onReservationTimer departs a reservation whose stored expiry has passed.
func (s *QueueService) onReservationTimer(sq *stationQueue, requesterID, entryID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reservation timer panicked", zap.String("entry_id", entryID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timerCallbackTimeout)
	defer cancel()

	sq.mu.Lock()
	defer sq.mu.Unlock()

	entry := sq.entries[requesterID]
	if entry == nil || entry.ID != entryID || entry.Status != models.QueueStatusReserved || entry.ReservationExpiry == nil {
		return
	}
	delete(sq.expiry, entryID)

	now := s.clock.Now()
	if now.Before(*entry.ReservationExpiry) {
		s.scheduleExpiryLocked(sq, requesterID, entryID, entry.ReservationExpiry.Sub(now))
		return
	}

	if err := s.departLocked(ctx, sq, entry, ReasonExpired); err != nil {
		s.logger.Warn("failed to expire reservation, retrying",
			zap.String("station_id", sq.id),
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
		s.scheduleExpiryLocked(sq, requesterID, entryID, expiryRetryDelay)
		return
	}
	s.metrics.ReservationExpired(sq.id)
	s.promoteLocked(ctx, sq)
	s.afterChangeLocked(ctx, sq)
}

// refreshEstimatesLocked recomputes wait estimates and tells waiting requesters.
func (s *QueueService) refreshEstimatesLocked(ctx context.Context, sq *stationQueue, moved map[string]int, now time.Time) {
	for _, entry := range sq.ordered() {
		if entry.Status != models.QueueStatusWaiting {
			continue
		}
		prev, wasMoved := moved[entry.ID]
		estimate := EstimateWait(entry.Position, sq.avgMinutes, s.opts.BaseWaitMinutes)
		if !wasMoved && estimate == entry.EstimatedWaitMinutes {
			continue
		}
		if !wasMoved {
			prev = entry.Position
		}
		entry.EstimatedWaitMinutes = estimate
		entry.UpdatedAt = now

		// Positions were already written by the departure; the estimate is advisory.
		if err := s.repo.UpdateQueueEntry(ctx, entry.ID, models.QueueEntryPatch{
			EstimatedWaitMinutes: &estimate,
			UpdatedAt:            now,
		}); err != nil {
			s.logger.Warn("failed to persist wait estimate", zap.String("entry_id", entry.ID), zap.Error(err))
		}
		s.publish(entry, now, models.PositionUpdated{
			EntryID:              entry.ID,
			PreviousPosition:     prev,
			Position:             entry.Position,
			EstimatedWaitMinutes: estimate,
		})
	}
}

func (s *QueueService) afterChangeLocked(ctx context.Context, sq *stationQueue) {
	s.metrics.QueueLength(sq.id, len(sq.entries))
	if err := s.mirror.SyncQueue(ctx, sq.id, sq.snapshot()); err != nil {
		s.logger.Warn("failed to mirror queue", zap.String("station_id", sq.id), zap.Error(err))
	}
}

func (s *QueueService) publish(entry *models.QueueEntry, at time.Time, payload models.EventPayload) {
	s.publisher.Publish(models.NewEvent(entry.RequesterID, entry.StationID, at, payload))
}

// Restore reloads open entries from the repository, renumbers each station densely and
// re-arms reservation timers. It returns the number of restored entries.
func (s *QueueService) Restore(ctx context.Context) (int, error) {
	entries, err := s.repo.ListOpenQueueEntries(ctx)
	if err != nil {
		return 0, persistenceError("list open queue entries", err)
	}

	byStation := make(map[string][]models.QueueEntry)
	for _, e := range entries {
		byStation[e.StationID] = append(byStation[e.StationID], e)
	}

	now := s.clock.Now()
	for stationID, list := range byStation {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Position == list[j].Position {
				return list[i].CreatedAt.Before(list[j].CreatedAt)
			}
			return list[i].Position < list[j].Position
		})

		sq := s.station(stationID)
		sq.mu.Lock()
		if st, err := s.stations.GetStation(ctx, stationID); err == nil && st != nil {
			sq.avgMinutes = st.AverageSessionMinutes
		} else if err != nil {
			s.logger.Warn("failed to load station while restoring", zap.String("station_id", stationID), zap.Error(err))
		}

		kept := make([]*models.QueueEntry, 0, len(list))
		for i := range list {
			entry := list[i].Clone()
			if prev, dup := sq.entries[entry.RequesterID]; dup {
				s.logger.Warn("duplicate open entry while restoring",
					zap.String("station_id", stationID),
					zap.String("kept", prev.ID),
					zap.String("dropped", entry.ID),
				)
				cancelled := models.QueueStatusCancelled
				if err := s.repo.UpdateQueueEntry(ctx, entry.ID, models.QueueEntryPatch{
					Status:           &cancelled,
					ClearReservation: true,
					UpdatedAt:        now,
				}); err != nil {
					s.logger.Warn("failed to cancel duplicate entry", zap.String("entry_id", entry.ID), zap.Error(err))
				}
				continue
			}
			sq.entries[entry.RequesterID] = entry
			kept = append(kept, entry)
		}

		for i, entry := range kept {
			if want := i + 1; entry.Position != want {
				entry.Position = want
				if err := s.repo.UpdateQueueEntry(ctx, entry.ID, models.QueueEntryPatch{Position: &want, UpdatedAt: now}); err != nil {
					s.logger.Warn("failed to persist renumbered position", zap.String("entry_id", entry.ID), zap.Error(err))
				}
			}
			if entry.Status == models.QueueStatusReserved {
				if entry.ReservationExpiry == nil {
					expiry := now.Add(s.opts.ReservationWindow)
					entry.ReservationExpiry = &expiry
				}
				s.armExpiryLocked(sq, entry)
			}
		}
		s.afterChangeLocked(ctx, sq)
		sq.mu.Unlock()
	}

	s.logger.Info("queue restored", zap.Int("entries", len(entries)), zap.Int("stations", len(byStation)))
	return len(entries), nil
}

func (sq *stationQueue) ordered() []*models.QueueEntry {
	out := make([]*models.QueueEntry, 0, len(sq.entries))
	for _, e := range sq.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (sq *stationQueue) snapshot() []models.QueueEntry {
	ordered := sq.ordered()
	out := make([]models.QueueEntry, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, *e.Clone())
	}
	return out
}

func (sq *stationQueue) maxPosition() int {
	max := 0
	for _, e := range sq.entries {
		if e.Position > max {
			max = e.Position
		}
	}
	return max
}

// pendingCount counts waiting and reserved entries, ignoring except.
func (sq *stationQueue) pendingCount(except *models.QueueEntry) int {
	n := 0
	for _, e := range sq.entries {
		if e == except {
			continue
		}
		if e.Status == models.QueueStatusWaiting || e.Status == models.QueueStatusReserved {
			n++
		}
	}
	return n
}

// closeGap moves every entry behind vacated up by one and returns their previous positions.
func (sq *stationQueue) closeGap(vacated int) map[string]int {
	moved := make(map[string]int)
	for _, e := range sq.entries {
		if e.Position > vacated {
			moved[e.ID] = e.Position
			e.Position--
		}
	}
	return moved
}
