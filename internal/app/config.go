package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type PostgresConfig struct {
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            string        `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"postgres"`
	Password        string        `env:"PASSWORD"`
	Name            string        `env:"NAME" envDefault:"fundtracer"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

type LedgerConfig struct {
	LockTimeout     time.Duration `env:"LOCK_TIMEOUT" envDefault:"2s"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryMinBackoff time.Duration `env:"RETRY_MIN_BACKOFF" envDefault:"25ms"`
	RetryMaxBackoff time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"500ms"`
}

type RedisConfig struct {
	Addr          string `env:"ADDR"`
	Password      string `env:"PASSWORD"`
	DB            int    `env:"DB" envDefault:"0"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"fundtracer.donations"`
}

type MetricsConfig struct {
	Enabled          bool          `env:"ENABLED" envDefault:"false"`
	Addr             string        `env:"ADDR" envDefault:":9090"`
	LatencyThreshold time.Duration `env:"LATENCY_THRESHOLD" envDefault:"500ms"`
	ScrapeInterval   time.Duration `env:"SCRAPE_INTERVAL" envDefault:"15s"`
}

type OtelConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"fundtracer-backend"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"EXPORTER_OTLP_INSECURE" envDefault:"false"`
	Headers     string  `env:"EXPORTER_OTLP_HEADERS"`
	SampleRatio float64 `env:"SAMPLER_RATIO" envDefault:"1"`
}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	LogMode     string `env:"LOG_MODE" envDefault:"development"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"dev"`

	DBDriver   string         `env:"DB_DRIVER" envDefault:"postgres"`
	Postgres   PostgresConfig `envPrefix:"POSTGRES_"`
	SQLitePath string         `env:"SQLITE_PATH" envDefault:"fundtracer.db"`

	JWTSecretKey string `env:"JWT_SECRET_KEY"`

	Ledger               LedgerConfig `envPrefix:"LEDGER_"`
	TransitionPolicyFile string       `env:"TRANSITION_POLICY_FILE"`

	Redis   RedisConfig   `envPrefix:"REDIS_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
	Otel    OtelConfig    `envPrefix:"OTEL_"`

	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	RequestTimeout   time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
}

// LoadConfig reads the process environment into a validated Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT must be positive")
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Ledger.RetryMaxBackoff < c.Ledger.RetryMinBackoff {
		return fmt.Errorf("LEDGER_RETRY_MAX_BACKOFF must not be below LEDGER_RETRY_MIN_BACKOFF")
	}
	return nil
}

func (c Config) ListenAddr() string {
	port := strings.TrimSpace(c.Port)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
