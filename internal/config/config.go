package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Matching MatchingConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// MatchingConfig holds the matching and offer policy knobs.
type MatchingConfig struct {
	// OfferFanout is how many top-ranked nurses receive an offer
	// simultaneously: 1 = best-match mode, >1 = multi-offer mode.
	OfferFanout int
	// OfferWindow is how long a nurse has to respond to an offer.
	OfferWindow time.Duration
	// DefaultMaxDistanceKm applies when the patient has no distance
	// preference.
	DefaultMaxDistanceKm float64
	// PlatformFee is the fixed fee charged per request.
	PlatformFee float64
	// ResponsivenessScoring enables the response-time score component.
	ResponsivenessScoring bool
	// PushEndpoint, when set, receives offer notifications via HTTP POST.
	PushEndpoint string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
	Env   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "homecare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "homecare-matching"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Matching: MatchingConfig{
			OfferFanout:           getIntEnv("MATCH_OFFER_FANOUT", 1),
			OfferWindow:           getDurationEnv("MATCH_OFFER_WINDOW", 15*time.Minute),
			DefaultMaxDistanceKm:  getFloatEnv("MATCH_DEFAULT_MAX_DISTANCE_KM", 10),
			PlatformFee:           getFloatEnv("MATCH_PLATFORM_FEE", 5),
			ResponsivenessScoring: getBoolEnv("MATCH_RESPONSIVENESS_SCORING", false),
			PushEndpoint:          getEnv("NOTIFY_PUSH_ENDPOINT", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "production"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
