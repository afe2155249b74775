package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the cleaning-cards analysis service.
type Config struct {
	// Server configuration
	Port string

	// OpenRouter configuration
	OpenRouterAPIKey string
	OpenRouterModel  string
	// Referrer and Title are sent as the HTTP-Referer / X-Title
	// identification headers on every model call.
	Referrer string
	Title    string

	// Model call behavior
	ModelTimeout time.Duration
	MaxRetries   int // additional attempts after the first

	// Provider selection: "openrouter" or "stub" (no-network, for CI)
	LLMProvider string

	// Rate limiting
	RateLimitPerMinute int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		Referrer:         getEnv("OPENROUTER_REFERRER", "https://cleaningcards.app"),
		Title:            getEnv("OPENROUTER_TITLE", "Cleaning Cards"),

		ModelTimeout: getDurationEnv("MODEL_TIMEOUT", 25*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 2),

		LLMProvider: getEnv("LLM_PROVIDER", "openrouter"),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
