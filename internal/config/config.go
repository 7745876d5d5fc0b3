package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// Database
	DBDriver    string // "sqlite" | "postgres"
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Identity
	DefaultUser  string
	AuthPassword string
	SessionTTL   time.Duration

	// Redis - optional, in-memory session store used when empty
	RedisURL string

	// OpenRouter
	OpenRouterBaseURL     string
	OpenRouterAPIKey      string
	OpenRouterModel       string
	OpenRouterTemperature float64
	OpenRouterTimeout     time.Duration
}

func Load() Config {
	return Config{
		Addr:         getenv("API_ADDR", ":8787"),
		CORSOrigin:   getenv("KANBAN_CORS_ORIGIN", "*"),
		DBDriver:     getenv("KANBAN_DB_DRIVER", "sqlite"),
		DBPath:       getenv("KANBAN_DB_PATH", "./data/kanban.db"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		DefaultUser:  getenv("KANBAN_DEFAULT_USER", "user"),
		AuthPassword: getenv("KANBAN_AUTH_PASSWORD", ""),
		SessionTTL:   time.Duration(getenvInt("KANBAN_SESSION_TTL_SECONDS", 86400)) * time.Second,
		RedisURL:     getenv("REDIS_URL", ""),

		OpenRouterBaseURL:     getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:      getenv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:       getenv("OPENROUTER_MODEL", "openai/gpt-oss-120b"),
		OpenRouterTemperature: getenvFloat("OPENROUTER_TEMPERATURE", 0),
		OpenRouterTimeout:     time.Duration(getenvInt("OPENROUTER_TIMEOUT_SECONDS", 20)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
