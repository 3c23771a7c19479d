package internal

import (
	"chat-ingest/session"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	SessionID string `env:"SESSION_ID,default=default" validate:"required,excludes=:"`

	StoreBackend string `env:"STORE_BACKEND,default=sqlite" validate:"oneof=sqlite badger"`
	SQLitePath   string `env:"SQLITE_PATH,default=data/ingest.db" validate:"required"`
	BadgerPath   string `env:"BADGER_PATH,default=data/badger" validate:"required"`
	GatewayURL   string `env:"GATEWAY_URL,default=ws://localhost:8765/session" validate:"required,url"`

	TimeUnit               time.Duration `env:"TIME_UNIT,default=1s" validate:"gt=0"`
	RetryMaxAttempts       int           `env:"RETRY_MAX_ATTEMPTS,default=5" validate:"min=1"`
	RetryJitter            float64       `env:"RETRY_JITTER,default=0.5" validate:"gte=0,lt=1"`
	HandshakeTimeout       time.Duration `env:"HANDSHAKE_TIMEOUT,default=30s" validate:"gt=0"`
	CredentialFlushTimeout time.Duration `env:"CREDENTIAL_FLUSH_TIMEOUT,default=5s" validate:"gt=0"`
	ClearOnLogout          bool          `env:"CLEAR_ON_LOGOUT,default=false"`

	QueueCapacity   int           `env:"QUEUE_CAPACITY,default=1000" validate:"min=1"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=5s" validate:"gt=0"`
	ReconcileEvery  int           `env:"RECONCILE_EVERY,default=2" validate:"min=1"`
	SummaryMaxChars int           `env:"SUMMARY_MAX_CHARS,default=50" validate:"min=1"`

	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=100" validate:"min=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	TimelineSize         int           `env:"TIMELINE_SIZE,default=20" validate:"min=1"`
	DebugPort            int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
	Colours              bool          `env:"COLOURS,default=true"`
}

// LoadConfig reads an optional .env file then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// RetryPolicy derives the connector policy. Delays are expressed in time-units.
func (c Config) RetryPolicy() session.Policy {
	return session.Policy{
		BaseDelay:              c.TimeUnit,
		MaxAttempts:            c.RetryMaxAttempts,
		Jitter:                 c.RetryJitter,
		HandshakeTimeout:       c.HandshakeTimeout,
		CredentialFlushTimeout: c.CredentialFlushTimeout,
	}
}

func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileEvery) * c.TimeUnit
}

// StorePath is the location of the selected backend.
func (c Config) StorePath() string {
	if c.StoreBackend == "badger" {
		return c.BadgerPath
	}
	return c.SQLitePath
}
