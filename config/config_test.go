package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "OPENROUTER_MODEL", "MODEL_TIMEOUT", "MAX_RETRIES", "LLM_PROVIDER", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.OpenRouterModel != "google/gemini-2.0-flash-001" {
		t.Errorf("OpenRouterModel = %q", cfg.OpenRouterModel)
	}
	if cfg.ModelTimeout != 25*time.Second {
		t.Errorf("ModelTimeout = %v, want 25s", cfg.ModelTimeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.LLMProvider != "openrouter" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Errorf("RateLimitPerMinute = %d, want 30", cfg.RateLimitPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_TIMEOUT", "30s")
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("LLM_PROVIDER", "stub")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.ModelTimeout != 30*time.Second {
		t.Errorf("ModelTimeout = %v, want 30s", cfg.ModelTimeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.LLMProvider != "stub" {
		t.Errorf("LLMProvider = %q, want stub", cfg.LLMProvider)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MODEL_TIMEOUT", "soon")
	t.Setenv("MAX_RETRIES", "lots")

	cfg := Load()
	if cfg.ModelTimeout != 25*time.Second {
		t.Errorf("malformed MODEL_TIMEOUT should fall back, got %v", cfg.ModelTimeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("malformed MAX_RETRIES should fall back, got %d", cfg.MaxRetries)
	}
}
