// Package config reads process settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/neexbeast/starwatch/internal/forecast"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Config struct {
	CWAAPIKey  string
	CWABaseURL string
	CWATimeout time.Duration
	CWARPS     float64

	StoreDriver   string
	DataDir       string
	DatabaseURL   string
	MigrationsDir string // empty: embedded migrations

	RedisURL string // empty: no advisory cache
	CacheTTL time.Duration

	BearerToken string
	Port        string
	LogLevel    slog.Level
}

// Load reads the configuration. A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		CWAAPIKey:  getEnv("CWA_API_KEY", ""),
		CWABaseURL: getEnv("CWA_BASE_URL", forecast.DefaultBaseURL),
		CWATimeout: getEnvAsDuration("CWA_TIMEOUT", 30*time.Second),
		CWARPS:     getEnvAsFloat("CWA_RPS", 1),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverFile)),
		DataDir:       getEnv("DATA_DIR", "."),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MigrationsDir: getEnv("MIGRATIONS_DIR", ""),

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: getEnvAsDuration("ADVISORY_CACHE_TTL", 10*time.Minute),

		BearerToken: getEnv("BEARER_TOKEN", ""),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate reports every missing or inconsistent setting the forecast
// pipeline needs, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.CWAAPIKey == "" {
		errs = append(errs, errors.New("CWA_API_KEY is required"))
	}
	switch c.StoreDriver {
	case DriverFile:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverFile, DriverPostgres, c.StoreDriver))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("ADVISORY_CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServer is Validate plus the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	err := c.Validate()
	if c.BearerToken == "" {
		err = errors.Join(err, errors.New("BEARER_TOKEN is required"))
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv(key, ""))); err != nil {
		return defaultValue
	}
	return level
}
