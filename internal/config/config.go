package config

import (
	"fmt"
	"time"

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	pkgconfig "github.com/kbhavake29/Task-flow-WebApp/pkg/config"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/database"
)

// Config holds all configuration for the TaskFlow API service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"taskflow"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"taskflow_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"taskflow_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT. The two secrets are independent so a leak of either keeps the
	// other token class safe; both are mandatory with no defaults.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Secure controls the Secure attribute on the refresh cookie. Only
	// disable it for local plain-HTTP development.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`

	// Periodic deletion of expired refresh-token rows.
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables and validates it.
// Missing or weak JWT secrets are a hard startup failure in every
// environment: the service must never fall back to a baked-in signing key.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load taskflow config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	if len(cfg.JWTAccessSecret) < auth.MinSecretLen {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET must be set and at least %d characters long, got %d", auth.MinSecretLen, len(cfg.JWTAccessSecret))
	}
	if len(cfg.JWTRefreshSecret) < auth.MinSecretLen {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET must be set and at least %d characters long, got %d", auth.MinSecretLen, len(cfg.JWTRefreshSecret))
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.JWTAccessExpiry <= 0 || cfg.JWTRefreshExpiry <= 0 {
		return nil, fmt.Errorf("token expiries must be positive")
	}
	if cfg.TokenSweepInterval <= 0 {
		return nil, fmt.Errorf("TOKEN_SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

// Postgres returns the connection-pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the revocation-cache configuration.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPass
	cfg.DB = c.RedisDB
	return cfg
}
