package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

const defaultSessionSecret = "dev-secret-change-in-production"

type Config struct {
	Port             string
	Env              string
	SupabaseURL      string
	SupabaseAnonKey  string
	DatabaseDSN      string
	SessionSecret    string
	ClientID         string
	BootstrapTimeout time.Duration
	RequestTimeout   time.Duration
	ProbeTimeout     time.Duration
}

func Load() Config {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		SupabaseURL:      getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:  getEnv("SUPABASE_ANON_KEY", ""),
		DatabaseDSN:      getEnv("DATABASE_DSN", ""),
		SessionSecret:    getEnv("SESSION_SECRET", defaultSessionSecret),
		ClientID:         getEnv("CLIENT_ID", "studyhall-web"),
		BootstrapTimeout: getEnvDuration("BOOTSTRAP_TIMEOUT", 5*time.Second),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", 3*time.Second),
	}

	if cfg.Env == "production" && cfg.DatabaseDSN != "" && cfg.SessionSecret == defaultSessionSecret {
		slog.Error("SESSION_SECRET must be set in production when session persistence is enabled")
		os.Exit(1)
	}

	return cfg
}

// BackendConfigured reports whether the backend credentials are present
// and free of the placeholder values shipped in .env templates. When it
// returns false the application runs against the mock backend client.
func (c Config) BackendConfigured() bool {
	if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
		return false
	}
	if strings.Contains(c.SupabaseURL, "your-project-id") {
		return false
	}
	if strings.Contains(c.SupabaseAnonKey, "your-anon-key") {
		return false
	}
	return true
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		slog.Warn("invalid duration value, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}
