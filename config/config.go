package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string
	RedisDB  int

	// JWT configuration
	JWTSecret string

	// Presence configuration
	InactivityThreshold time.Duration // how long without activity before a user counts as offline
	RecentLoginWindow   time.Duration // how long a login counts toward the recent-logins metric
	FeedInterval        time.Duration // how often the websocket feed pushes roster snapshots
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8082"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisDB:  getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		InactivityThreshold: time.Duration(getEnvAsInt("PRESENCE_INACTIVITY_SECONDS", 900)) * time.Second,
		RecentLoginWindow:   time.Duration(getEnvAsInt("RECENT_LOGIN_WINDOW_SECONDS", 300)) * time.Second,
		FeedInterval:        time.Duration(getEnvAsInt("FEED_INTERVAL_SECONDS", 5)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
