// Package config provides application configuration management.
// It loads configuration from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Aura client.
type Config struct {
	// Detection backend base URL. May be empty: dependent calls then fail
	// with a configuration error instead of attempting any network request.
	APIEndpoint string

	// Identity provider / data store
	SupabaseURL     string
	SupabaseAnonKey string

	// Pagination
	HistoryPageLimit      int
	RecentDetectionsLimit int

	// Transport
	RequestTimeout time.Duration

	// Local callback listener for the hosted-checkout return leg
	CallbackListenAddr string

	// Session persistence
	SessionFile string

	Env string
}

// Load returns a Config populated from the environment. An optional .env
// file is applied first. The identity provider credentials are required;
// the backend endpoint deliberately is not.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		APIEndpoint:           getEnv("AURA_API_ENDPOINT", ""),
		SupabaseURL:           os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:       os.Getenv("SUPABASE_ANON_KEY"),
		HistoryPageLimit:      getEnvInt("HISTORY_PAGE_LIMIT", 3),
		RecentDetectionsLimit: getEnvInt("RECENT_DETECTIONS_LIMIT", 5),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CallbackListenAddr:    getEnv("CALLBACK_LISTEN_ADDR", "127.0.0.1:8799"),
		SessionFile:           getEnv("SESSION_FILE", defaultSessionFile()),
		Env:                   getEnv("ENV", "development"),
	}

	var missing []string
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.HistoryPageLimit < 1 {
		cfg.HistoryPageLimit = 3
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aura-session.json")
	}
	return filepath.Join(home, ".config", "aura", "session.json")
}

// loadEnvFile applies the first readable .env file. Absence is not an error;
// deployments may set real environment variables instead.
func loadEnvFile() {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates, ".env", filepath.Join("configs", ".env"))

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
