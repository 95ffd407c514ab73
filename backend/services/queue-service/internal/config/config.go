package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargequeue/backend/libs/config"
)

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Port string `yaml:"port" env:"QUEUE_HTTP_PORT"`
}

// DatabaseConfig points at the postgres store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"QUEUE_POSTGRES_DSN"`
}

// RedisConfig configures the optional live-state mirror. An empty address disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"QUEUE_REDIS_ADDR"`
	Password string        `yaml:"password" env:"QUEUE_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"QUEUE_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"QUEUE_REDIS_TTL"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"QUEUE_JWT_SECRET"`
}

// NotifyConfig configures the notification gateway sinks.
type NotifyConfig struct {
	AMQPURL        string        `yaml:"amqpUrl" env:"QUEUE_AMQP_URL"`
	Exchange       string        `yaml:"exchange" env:"QUEUE_AMQP_EXCHANGE"`
	WebhookURL     string        `yaml:"webhookUrl" env:"QUEUE_WEBHOOK_URL"`
	WebhookTimeout time.Duration `yaml:"webhookTimeout" env:"QUEUE_WEBHOOK_TIMEOUT"`
	Workers        int           `yaml:"workers" env:"QUEUE_NOTIFY_WORKERS"`
	Buffer         int           `yaml:"buffer" env:"QUEUE_NOTIFY_BUFFER"`
	PingInterval   time.Duration `yaml:"pingInterval" env:"QUEUE_WS_PING_INTERVAL"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"QUEUE_WS_WRITE_TIMEOUT"`
}

// QueueConfig holds admission queue rules.
type QueueConfig struct {
	ReservationWindow time.Duration `yaml:"reservationWindow" env:"QUEUE_RESERVATION_WINDOW"`
	BaseWaitMinutes   int           `yaml:"baseWaitMinutes" env:"QUEUE_BASE_WAIT_MINUTES"`
}

// SessionConfig holds the session simulation and scheduling parameters.
type SessionConfig struct {
	TickInterval        time.Duration `yaml:"tickInterval" env:"SESSION_TICK_INTERVAL"`
	ProgressEvery       time.Duration `yaml:"progressEvery" env:"SESSION_PROGRESS_EVERY"`
	CheckpointEvery     time.Duration `yaml:"checkpointEvery" env:"SESSION_CHECKPOINT_EVERY"`
	AutoResumeAfter     time.Duration `yaml:"autoResumeAfter" env:"SESSION_AUTO_RESUME_AFTER"`
	StaleAfter          time.Duration `yaml:"staleAfter" env:"SESSION_STALE_AFTER"`
	SweepInterval       time.Duration `yaml:"sweepInterval" env:"SESSION_SWEEP_INTERVAL"`
	InitialBatteryLevel float64       `yaml:"initialBatteryLevel" env:"SESSION_INITIAL_BATTERY"`
	TargetBatteryLevel  float64       `yaml:"targetBatteryLevel" env:"SESSION_TARGET_BATTERY"`
	TaperThreshold      float64       `yaml:"taperThreshold" env:"SESSION_TAPER_THRESHOLD"`
	EnergyFactor        float64       `yaml:"energyFactor" env:"SESSION_ENERGY_FACTOR"`
	EfficiencyFloor     float64       `yaml:"efficiencyFloor" env:"SESSION_EFFICIENCY_FLOOR"`
	EfficiencyDecay     float64       `yaml:"efficiencyDecay" env:"SESSION_EFFICIENCY_DECAY"`
}

// BillingConfig holds the cost breakdown rates.
type BillingConfig struct {
	PlatformFeeRate  float64 `yaml:"platformFeeRate" env:"BILLING_PLATFORM_FEE_RATE"`
	PlatformFeeFloor float64 `yaml:"platformFeeFloor" env:"BILLING_PLATFORM_FEE_FLOOR"`
	GSTRate          float64 `yaml:"gstRate" env:"BILLING_GST_RATE"`
}

// StationSeed describes a station written to the directory at startup.
type StationSeed struct {
	ID                    string  `yaml:"id"`
	Name                  string  `yaml:"name"`
	Closed                bool    `yaml:"closed"`
	Inactive              bool    `yaml:"inactive"`
	MaxQueueLength        int     `yaml:"maxQueueLength"`
	AverageSessionMinutes int     `yaml:"averageSessionMinutes"`
	PricePerUnit          float64 `yaml:"pricePerUnit"`
	RatedPowerKW          float64 `yaml:"ratedPowerKw"`
}

// Config defines queue service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Queue    QueueConfig    `yaml:"queue"`
	Session  SessionConfig  `yaml:"session"`
	Billing  BillingConfig  `yaml:"billing"`
	Stations []StationSeed  `yaml:"stations" env:"-"`
}

// Default returns configuration with every default filled in.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Port: "8085"},
		Redis: RedisConfig{TTL: 24 * time.Hour},
		Notify: NotifyConfig{
			Exchange:       "charging.events",
			WebhookTimeout: 5 * time.Second,
			Workers:        4,
			Buffer:         256,
			PingInterval:   30 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		Queue: QueueConfig{
			ReservationWindow: 15 * time.Minute,
			BaseWaitMinutes:   5,
		},
		Session: SessionConfig{
			TickInterval:        30 * time.Second,
			ProgressEvery:       10 * time.Minute,
			CheckpointEvery:     5 * time.Minute,
			AutoResumeAfter:     10 * time.Minute,
			StaleAfter:          24 * time.Hour,
			SweepInterval:       time.Hour,
			InitialBatteryLevel: 20,
			TargetBatteryLevel:  80,
			TaperThreshold:      80,
			EnergyFactor:        0.6,
			EfficiencyFloor:     90,
			EfficiencyDecay:     0.1,
		},
		Billing: BillingConfig{
			PlatformFeeRate:  0.05,
			PlatformFeeFloor: 5,
			GSTRate:          0.18,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	return cfg, nil
}

// Validate checks the business parameters.
func (c *Config) Validate() error {
	if c.Queue.ReservationWindow <= 0 {
		return errors.New("queue reservation window must be positive")
	}
	if c.Queue.BaseWaitMinutes < 0 {
		return errors.New("queue base wait must not be negative")
	}
	s := c.Session
	if s.TickInterval <= 0 || s.ProgressEvery <= 0 || s.CheckpointEvery <= 0 {
		return errors.New("session intervals must be positive")
	}
	if s.AutoResumeAfter <= 0 || s.StaleAfter <= 0 || s.SweepInterval <= 0 {
		return errors.New("session timeouts must be positive")
	}
	if s.InitialBatteryLevel < 0 || s.TargetBatteryLevel > 100 || s.InitialBatteryLevel >= s.TargetBatteryLevel {
		return fmt.Errorf("session battery levels must satisfy 0 <= initial (%v) < target (%v) <= 100",
			s.InitialBatteryLevel, s.TargetBatteryLevel)
	}
	if s.EnergyFactor <= 0 {
		return errors.New("session energy factor must be positive")
	}
	b := c.Billing
	if b.PlatformFeeRate < 0 || b.PlatformFeeFloor < 0 || b.GSTRate < 0 {
		return errors.New("billing rates must not be negative")
	}
	if c.Notify.Workers <= 0 || c.Notify.Buffer <= 0 {
		return errors.New("notify workers and buffer must be positive")
	}
	seen := make(map[string]bool, len(c.Stations))
	for _, st := range c.Stations {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			return errors.New("station seed without id")
		}
		if seen[id] {
			return fmt.Errorf("station %s seeded twice", id)
		}
		seen[id] = true
		if st.MaxQueueLength < 0 || st.AverageSessionMinutes < 0 || st.PricePerUnit < 0 || st.RatedPowerKW < 0 {
			return fmt.Errorf("station %s has negative settings", id)
		}
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
