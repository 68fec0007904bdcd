// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all service settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	Auth     AuthConfig
	SeedDemo bool
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig describes the optional Postgres backend. An empty URL means
// the in-memory store is used.
type DatabaseConfig struct {
	URL string
}

// AIConfig describes the responder model.
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	Stream      bool
}

// Enabled reports whether responder credentials were provided.
func (c AIConfig) Enabled() bool { return c.APIKey != "" }

// AuthConfig describes token signing for the provider API. Empty secret
// disables provider auth (dev mode).
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// Load reads and validates all settings from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	temperature, err := parseOptionalFloatEnv("OPENAI_TEMPERATURE")
	if err != nil {
		return nil, err
	}
	temp := float32(0.2)
	if temperature != nil {
		temp = float32(*temperature)
	}

	stream, err := parseBoolEnv("OPENAI_STREAM", true)
	if err != nil {
		return nil, err
	}

	seedDemo, err := parseBoolEnv("SEED_DEMO_PATIENT", false)
	if err != nil {
		return nil, err
	}

	ttlHours, err := parseOptionalIntEnv("AUTH_TOKEN_TTL_HOURS")
	if err != nil {
		return nil, err
	}
	ttl := 24 * time.Hour
	if ttlHours != nil && *ttlHours > 0 {
		ttl = time.Duration(*ttlHours) * time.Hour
	}

	return &Config{
		Server:   server,
		Database: DatabaseConfig{URL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		AI: AIConfig{
			APIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:     strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Temperature: temp,
			Stream:      stream,
		},
		Auth: AuthConfig{
			TokenSecret: strings.TrimSpace(os.Getenv("AUTH_TOKEN_SECRET")),
			TokenTTL:    ttl,
		},
		SeedDemo: seedDemo,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
