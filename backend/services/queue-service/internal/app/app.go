package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libredis "chargequeue/backend/libs/redis"
	"chargequeue/backend/services/queue-service/internal/clock"
	"chargequeue/backend/services/queue-service/internal/config"
	"chargequeue/backend/services/queue-service/internal/db"
	httpserver "chargequeue/backend/services/queue-service/internal/http"
	"chargequeue/backend/services/queue-service/internal/http/handlers"
	"chargequeue/backend/services/queue-service/internal/http/middleware"
	"chargequeue/backend/services/queue-service/internal/metrics"
	"chargequeue/backend/services/queue-service/internal/models"
	"chargequeue/backend/services/queue-service/internal/notify"
	redisstore "chargequeue/backend/services/queue-service/internal/redis"
	"chargequeue/backend/services/queue-service/internal/repository"
	"chargequeue/backend/services/queue-service/internal/service"
)

const startupTimeout = 30 * time.Second

// App wires queue-service dependencies.
type App struct {
	server      *httpserver.Server
	queue       *service.QueueService
	sessions    *service.SessionService
	dispatcher  *notify.Dispatcher
	hub         *notify.Hub
	amqp        *notify.AMQPPublisher
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph and reloads the open queue and sessions.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = sqlDB
	if err := repository.EnsureSchema(ctx, sqlDB); err != nil {
		return nil, err
	}

	queueRepo := repository.NewQueueEntryRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(sqlDB)
	stationRepo := repository.NewStationRepository(sqlDB)
	if err := seedStations(ctx, stationRepo, cfg.Stations); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewPromRecorder(registry)
	if err != nil {
		return nil, err
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	a.hub = notify.NewHub(cfg.Notify.PingInterval, cfg.Notify.WriteTimeout, auth.Identify, logger)
	sinks := notify.Multi{a.hub}
	if cfg.Notify.AMQPURL != "" {
		a.amqp, err = notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		sinks = append(sinks, a.amqp)
	}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookClient(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, logger))
	}
	a.dispatcher = notify.NewDispatcher(sinks, cfg.Notify.Workers, cfg.Notify.Buffer, logger)

	extras := []service.Option{
		service.WithPublisher(a.dispatcher),
		service.WithRecorder(recorder),
	}
	if cfg.Redis.Addr != "" {
		a.redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		extras = append(extras, service.WithMirror(redisstore.NewStore(a.redisClient, cfg.Redis.TTL)))
	}

	clk := clock.New()
	a.queue = service.NewQueueService(queueRepo, stationRepo, clk, service.QueueOptions{
		ReservationWindow: cfg.Queue.ReservationWindow,
		BaseWaitMinutes:   cfg.Queue.BaseWaitMinutes,
	}, logger.Named("queue"), extras...)
	a.sessions = service.NewSessionService(sessionRepo, stationRepo, a.queue, clk, sessionOptions(cfg),
		logger.Named("sessions"), extras...)

	if _, err := a.queue.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore queue: %w", err)
	}
	if _, err := a.sessions.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore sessions: %w", err)
	}

	queueHandlers := handlers.NewQueueHandlers(a.queue, a.sessions, queueRepo, logger)
	sessionHandlers := handlers.NewSessionHandlers(a.sessions, sessionRepo, logger)
	stationHandlers := handlers.NewStationHandlers(a.queue)

	routes := httpserver.Routes{
		QueueJoin:      queueHandlers.Join,
		QueueLeave:     queueHandlers.Leave,
		QueueReserve:   queueHandlers.Reserve,
		QueueStart:     queueHandlers.Start,
		QueueComplete:  queueHandlers.Complete,
		QueueStatus:    queueHandlers.Status,
		QueueMe:        queueHandlers.Me,
		SessionStop:    sessionHandlers.Stop,
		SessionPause:   sessionHandlers.Pause,
		SessionResume:  sessionHandlers.Resume,
		SessionExtend:  sessionHandlers.Extend,
		SessionStatus:  sessionHandlers.Status,
		SessionsMe:     sessionHandlers.Me,
		ActiveSessions: sessionHandlers.Active,
		StationQueue:   stationHandlers.Queue,
		Events:         a.hub.HandleWS,
		Metrics:        metrics.Handler(registry),
		Health:         handlers.Health,
	}
	router := httpserver.NewRouter(routes, auth.Middleware)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	ok = true
	return a, nil
}

func sessionOptions(cfg *config.Config) service.SessionOptions {
	s := cfg.Session
	return service.SessionOptions{
		TickInterval:       s.TickInterval,
		ProgressEvery:      s.ProgressEvery,
		CheckpointEvery:    s.CheckpointEvery,
		AutoResumeAfter:    s.AutoResumeAfter,
		StaleAfter:         s.StaleAfter,
		SweepInterval:      s.SweepInterval,
		TargetBatteryLevel: s.TargetBatteryLevel,
		Model: service.ProgressModel{
			InitialBatteryLevel: s.InitialBatteryLevel,
			TaperThreshold:      s.TaperThreshold,
			EnergyFactor:        s.EnergyFactor,
			EfficiencyFloor:     s.EfficiencyFloor,
			EfficiencyDecay:     s.EfficiencyDecay,
		},
		Tariff: service.Tariff{
			PlatformFeeRate:  cfg.Billing.PlatformFeeRate,
			PlatformFeeFloor: cfg.Billing.PlatformFeeFloor,
			GSTRate:          cfg.Billing.GSTRate,
		},
	}
}

type stationWriter interface {
	Upsert(ctx context.Context, st *models.Station) error
}

func seedStations(ctx context.Context, repo stationWriter, seeds []config.StationSeed) error {
	for _, seed := range seeds {
		st := &models.Station{
			ID:                    seed.ID,
			Name:                  seed.Name,
			IsActive:              !seed.Inactive,
			IsOpen:                !seed.Closed,
			MaxQueueLength:        seed.MaxQueueLength,
			AverageSessionMinutes: seed.AverageSessionMinutes,
			PricePerUnit:          seed.PricePerUnit,
			RatedPowerKW:          seed.RatedPowerKW,
		}
		if err := repo.Upsert(ctx, st); err != nil {
			return fmt.Errorf("seed station %s: %w", seed.ID, err)
		}
	}
	return nil
}

// Run serves HTTP and delivers notifications until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.sessions.StartSweeper()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.hub.Start(gctx) })
	return g.Wait()
}

// Close releases resources. Open sessions stay in the store and are restored on next start.
func (a *App) Close() {
	if a.sessions != nil {
		a.sessions.Shutdown()
	}
	if a.queue != nil {
		a.queue.Shutdown()
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close amqp", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
