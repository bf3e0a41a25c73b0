package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the full service configuration, read from the environment
// with sensible defaults.
type AppConfig struct {
	Port     string
	LogLevel string
	Env      string

	// ProviderTimeout bounds every geocode + range-fetch call.
	ProviderTimeout time.Duration

	// HTTPTimeout applies to the shared outbound HTTP client.
	HTTPTimeout time.Duration

	// CacheTTL is how long fetched bundles stay valid.
	CacheTTL time.Duration

	// SweepInterval controls the periodic cache sweep.
	SweepInterval time.Duration

	// MaxQueryLength rejects oversized queries before parsing.
	MaxQueryLength int

	// GoogleGeocoderKey switches geocoding to the Google API when set.
	GoogleGeocoderKey string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		Env:               getenvDefault("APP_ENV", "development"),
		MaxQueryLength:    getenvInt("MAX_QUERY_LENGTH", 500),
		GoogleGeocoderKey: os.Getenv("GEOCODER_API_KEY"),
	}

	var err error
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 600*time.Second); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.SweepInterval, err = getenvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid CACHE_SWEEP_INTERVAL: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
