package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"chargequeue/backend/services/queue-service/internal/models"
)

var errStoreDown = errors.New("store down")

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type memQueueRepo struct {
	mu      sync.Mutex
	entries map[string]*models.QueueEntry
	fail    bool
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{entries: make(map[string]*models.QueueEntry)}
}

func (r *memQueueRepo) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *memQueueRepo) InsertQueueEntry(_ context.Context, entry *models.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errStoreDown
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *memQueueRepo) UpdateQueueEntry(_ context.Context, id string, patch models.QueueEntryPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errStoreDown
	}
	e, ok := r.entries[id]
	if !ok {
		return errors.New("no such entry")
	}
	if patch.Position != nil {
		e.Position = *patch.Position
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.EstimatedWaitMinutes != nil {
		e.EstimatedWaitMinutes = *patch.EstimatedWaitMinutes
	}
	if patch.ReservationExpiry != nil {
		exp := *patch.ReservationExpiry
		e.ReservationExpiry = &exp
	}
	if patch.ClearReservation {
		e.ReservationExpiry = nil
	}
	e.UpdatedAt = patch.UpdatedAt
	return nil
}

func (r *memQueueRepo) MoveQueueEntry(_ context.Context, entry *models.QueueEntry, vacated int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errStoreDown
	}
	for id, e := range r.entries {
		if id == entry.ID || e.StationID != entry.StationID || !e.Status.Open() {
			continue
		}
		if e.Position > vacated {
			e.Position--
		}
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *memQueueRepo) ListOpenQueueEntries(context.Context) ([]models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	var out []models.QueueEntry
	for _, e := range r.entries {
		if e.Status.Open() {
			out = append(out, *e.Clone())
		}
	}
	return out, nil
}

func (r *memQueueRepo) get(id string) models.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id].Clone()
}

type memSessionRepo struct {
	mu          sync.Mutex
	sessions    map[string]*models.ChargingSession
	failUpdates bool
	checkpoints int
	finalWrites int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*models.ChargingSession)}
}

func (r *memSessionRepo) InsertSession(_ context.Context, s *models.ChargingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sessions[s.ID]; dup {
		return errors.New("duplicate session")
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memSessionRepo) UpdateSession(_ context.Context, id string, p models.SessionPatch, finalize bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return errStoreDown
	}
	s, ok := r.sessions[id]
	if !ok {
		return errors.New("no such session")
	}
	s.Status = p.Status
	s.CurrentBatteryLevel = p.CurrentBatteryLevel
	s.TargetBatteryLevel = p.TargetBatteryLevel
	s.ChargingRate = p.ChargingRate
	s.EnergyDelivered = p.EnergyDelivered
	s.TotalCost = p.TotalCost
	s.Efficiency = p.Efficiency
	s.PausedAt = p.PausedAt
	s.PausedTotal = p.PausedTotal
	s.EndTime = p.EndTime
	s.UpdatedAt = p.UpdatedAt
	if finalize {
		r.finalWrites++
	} else {
		r.checkpoints++
	}
	return nil
}

func (r *memSessionRepo) ListOpenSessions(context.Context) ([]models.ChargingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChargingSession
	for _, s := range r.sessions {
		if s.Status.Open() {
			out = append(out, *s.Clone())
		}
	}
	return out, nil
}

func (r *memSessionRepo) get(id string) models.ChargingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[id].Clone()
}

func (r *memSessionRepo) setFailUpdates(fail bool) {
	r.mu.Lock()
	r.failUpdates = fail
	r.mu.Unlock()
}

type stationDir map[string]*models.Station

func (d stationDir) GetStation(_ context.Context, id string) (*models.Station, error) {
	st, ok := d[id]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}

func openStation(id string, maxQueue int) *models.Station {
	return &models.Station{
		ID:                    id,
		Name:                  "Station " + id,
		IsActive:              true,
		IsOpen:                true,
		MaxQueueLength:        maxQueue,
		AverageSessionMinutes: 30,
		PricePerUnit:          10,
		RatedPowerKW:          30,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(e models.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) ofType(t models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	expired  int
	finished map[models.SessionStatus]int
}

func (c *countingRecorder) ReservationExpired(string) {
	c.mu.Lock()
	c.expired++
	c.mu.Unlock()
}

func (c *countingRecorder) SessionFinished(status models.SessionStatus, _ float64) {
	c.mu.Lock()
	if c.finished == nil {
		c.finished = make(map[models.SessionStatus]int)
	}
	c.finished[status]++
	c.mu.Unlock()
}
