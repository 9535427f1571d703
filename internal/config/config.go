package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Synergy API
	SynergyAPIKey     string        `envconfig:"SYNERGY_API_KEY"`
	SynergyAPIKeyFile string        `envconfig:"SYNERGY_API_KEY_FILE"`
	SynergyBaseURL    string        `envconfig:"SYNERGY_BASE_URL" default:"https://basketball.synergysportstech.com/api"`
	SynergyTimeout    time.Duration `envconfig:"SYNERGY_TIMEOUT" default:"30s"`
	League            string        `envconfig:"SYNERGY_LEAGUE" default:"ncaamb"`
	SeasonID          string        `envconfig:"SYNERGY_SEASON_ID"`

	// Throttle tuning
	ThrottleBase       time.Duration `envconfig:"THROTTLE_BASE" default:"1.5s"`
	ThrottleFloor      time.Duration `envconfig:"THROTTLE_FLOOR" default:"800ms"`
	ThrottleCeiling    time.Duration `envconfig:"THROTTLE_CEILING" default:"8s"`
	ThrottleCooldown   time.Duration `envconfig:"THROTTLE_COOLDOWN" default:"3s"`
	ThrottleCooldownAt int           `envconfig:"THROTTLE_COOLDOWN_EVERY" default:"25"`
	MaxRetries         int           `envconfig:"SYNERGY_MAX_RETRIES" default:"8"`

	// Store
	StoreDriver      string `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath       string `envconfig:"SQLITE_PATH" default:"data/skout.db"`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"skout"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"skout"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Caching TTL (in seconds)
	CacheTTLSeasons int `envconfig:"CACHE_TTL_SEASONS" default:"86400"` // 24 hours
	CacheTTLTeams   int `envconfig:"CACHE_TTL_TEAMS" default:"43200"`   // 12 hours
	CacheTTLRosters int `envconfig:"CACHE_TTL_ROSTERS" default:"21600"` // 6 hours

	// Application
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	CatalogFile string `envconfig:"CATALOG_FILE"`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	IngestCron         string `envconfig:"INGEST_CRON" default:"0 6 * * *"`
	AllSeasons         bool   `envconfig:"INGEST_ALL_SEASONS" default:"false"`
	SkipStats          bool   `envconfig:"INGEST_SKIP_STATS" default:"false"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`

	Catalog *Catalog `ignored:"true"`
}

// ConfigurationError reports a missing or invalid setting. It is always fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.SynergyAPIKey == "" && cfg.SynergyAPIKeyFile != "" {
		key, err := readSecretFile(cfg.SynergyAPIKeyFile)
		if err != nil {
			return nil, err
		}
		cfg.SynergyAPIKey = key
	}

	catalog, err := LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	cfg.Catalog = catalog

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration. The API key is checked by the
// client constructor so that store-only commands run without one.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return &ConfigurationError{Field: "SQLITE_PATH", Reason: "is required for the sqlite driver"}
		}
	case DriverPostgres:
		if c.DatabasePassword == "" {
			return &ConfigurationError{Field: "DATABASE_PASSWORD", Reason: "is required for the postgres driver"}
		}
	default:
		return &ConfigurationError{Field: "STORE_DRIVER", Reason: fmt.Sprintf("must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver)}
	}

	if c.League == "" {
		return &ConfigurationError{Field: "SYNERGY_LEAGUE", Reason: "must not be empty"}
	}

	if c.ThrottleFloor <= 0 || c.ThrottleFloor > c.ThrottleBase || c.ThrottleBase > c.ThrottleCeiling {
		return &ConfigurationError{Field: "THROTTLE_*", Reason: "must satisfy 0 < floor <= base <= ceiling"}
	}

	if c.MaxRetries < 1 {
		return &ConfigurationError{Field: "SYNERGY_MAX_RETRIES", Reason: "must be at least 1"}
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// SQLiteDSN returns the sqlite:// DSN for the local store
func (c *Config) SQLiteDSN() string {
	return "sqlite://" + c.SQLitePath
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or exits on error
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// readSecretFile reads a mounted secret such as /run/secrets/synergy_api_key.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigurationError{Field: "SYNERGY_API_KEY_FILE", Reason: fmt.Sprintf("cannot be read: %v", err)}
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", &ConfigurationError{Field: "SYNERGY_API_KEY_FILE", Reason: "is empty"}
	}
	return secret, nil
}
