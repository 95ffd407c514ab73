package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chargequeue/backend/services/queue-service/internal/models"
	"chargequeue/backend/services/queue-service/internal/service"
)

// PromRecorder records queue and session measurements in Prometheus metrics.
type PromRecorder struct {
	queueLength     *prometheus.GaugeVec
	joins           *prometheus.CounterVec
	expirations     *prometheus.CounterVec
	liveSessions    prometheus.Gauge
	finished        *prometheus.CounterVec
	energyDelivered prometheus.Counter
}

// NewPromRecorder registers the collectors on reg. If reg is nil, the default registerer is
// used. Collectors that are already registered are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargequeue_queue_length",
			Help: "Open queue entries per station",
		}, []string{"station_id"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargequeue_joins_total",
			Help: "Join attempts by outcome",
		}, []string{"station_id", "result"}),
		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargequeue_reservations_expired_total",
			Help: "Reservations that lapsed without charging",
		}, []string{"station_id"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chargequeue_live_sessions",
			Help: "Open charging sessions",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargequeue_sessions_finished_total",
			Help: "Finished charging sessions by final status",
		}, []string{"status"}),
		energyDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chargequeue_energy_delivered_total",
			Help: "Energy delivered by finished sessions",
		}),
	}

	var err error
	if r.queueLength, err = register(reg, r.queueLength); err != nil {
		return nil, err
	}
	if r.joins, err = register(reg, r.joins); err != nil {
		return nil, err
	}
	if r.expirations, err = register(reg, r.expirations); err != nil {
		return nil, err
	}
	if r.liveSessions, err = register(reg, r.liveSessions); err != nil {
		return nil, err
	}
	if r.finished, err = register(reg, r.finished); err != nil {
		return nil, err
	}
	if r.energyDelivered, err = register(reg, r.energyDelivered); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// QueueLength sets the open entry gauge of a station.
func (r *PromRecorder) QueueLength(stationID string, open int) {
	r.queueLength.WithLabelValues(stationID).Set(float64(open))
}

// JoinResult counts a join attempt by outcome.
func (r *PromRecorder) JoinResult(stationID string, err error) {
	r.joins.WithLabelValues(stationID, joinOutcome(err)).Inc()
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, service.ErrQueueFull):
		return "full"
	case errors.Is(err, service.ErrResourceUnavailable):
		return "unavailable"
	case errors.Is(err, service.ErrNotFound):
		return "unknown_station"
	default:
		return "error"
	}
}

// ReservationExpired counts a lapsed reservation.
func (r *PromRecorder) ReservationExpired(stationID string) {
	r.expirations.WithLabelValues(stationID).Inc()
}

// LiveSessions sets the open session gauge.
func (r *PromRecorder) LiveSessions(n int) {
	r.liveSessions.Set(float64(n))
}

// SessionFinished counts a finished session and the energy it delivered.
func (r *PromRecorder) SessionFinished(status models.SessionStatus, energy float64) {
	r.finished.WithLabelValues(string(status)).Inc()
	if energy > 0 {
		r.energyDelivered.Add(energy)
	}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
