package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	Port           string `env:"PORT" envDefault:"8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	JWTSecret      string `env:"JWT_SECRET" envDefault:"12345"`
	InternalAPIKey string `env:"INTERNAL_API_KEY"`

	// RedisURL is optional; without it preferences are read straight from
	// postgres and dead letters only go to the log.
	RedisURL string `env:"REDIS_URL"`

	Database     DatabaseConfig
	Notification NotificationConfig
}

type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	User         string `env:"DB_USER" envDefault:"postgres"`
	Password     string `env:"DB_PASS"`
	Name         string `env:"DB_NAME" envDefault:"tunehub"`
	Port         string `env:"DB_PORT" envDefault:"5432"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

type NotificationConfig struct {
	BatchSize             int           `env:"NOTIFICATION_BATCH_SIZE" envDefault:"100"`
	FlushInterval         time.Duration `env:"NOTIFICATION_FLUSH_INTERVAL" envDefault:"5s"`
	MaxAttempts           int           `env:"NOTIFICATION_MAX_ATTEMPTS" envDefault:"5"`
	PreferenceConcurrency int           `env:"NOTIFICATION_PREF_CONCURRENCY" envDefault:"8"`
	PreferenceCacheTTL    time.Duration `env:"NOTIFICATION_PREF_CACHE_TTL" envDefault:"5m"`
	DeadLetterKey         string        `env:"NOTIFICATION_DEAD_LETTER_KEY" envDefault:"notifications:dead_letter"`
	WSSendBuffer          int           `env:"WS_SEND_BUFFER" envDefault:"16"`
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	n := c.Notification
	if n.BatchSize <= 0 {
		return fmt.Errorf("invalid NOTIFICATION_BATCH_SIZE: %d", n.BatchSize)
	}
	if n.FlushInterval < time.Second {
		return fmt.Errorf("invalid NOTIFICATION_FLUSH_INTERVAL: %s (minimum 1s)", n.FlushInterval)
	}
	if n.MaxAttempts <= 0 {
		return fmt.Errorf("invalid NOTIFICATION_MAX_ATTEMPTS: %d", n.MaxAttempts)
	}
	if n.PreferenceConcurrency <= 0 {
		return fmt.Errorf("invalid NOTIFICATION_PREF_CONCURRENCY: %d", n.PreferenceConcurrency)
	}
	if c.AppEnv == "production" && c.JWTSecret == "12345" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
