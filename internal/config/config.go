package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	JWTSecret   string

	// Geofence tuning. The debounce thresholds are product heuristics with
	// no universally correct value, so they stay configurable.
	DebounceMeters     float64
	DebounceWindow     time.Duration
	MaxAccuracyMeters  float64
	ProximityRadius    float64
	BanDisconnectGrace time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/bam.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		DebounceMeters:     getEnvFloat("GEOFENCE_DEBOUNCE_METERS", 50),
		DebounceWindow:     time.Duration(getEnvInt("GEOFENCE_DEBOUNCE_SECONDS", 300)) * time.Second,
		MaxAccuracyMeters:  getEnvFloat("GEOFENCE_MAX_ACCURACY_METERS", 100),
		ProximityRadius:    getEnvFloat("PROXIMITY_RADIUS_METERS", 500),
		BanDisconnectGrace: time.Duration(getEnvInt("BAN_DISCONNECT_GRACE_MS", 1000)) * time.Millisecond,
	}

	// In production, require the durable store, redis and a signing secret
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
