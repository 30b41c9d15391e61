package utils

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// SeedConfig is the environment-driven configuration for a seed run.
// Missing required values are a fatal configuration error surfaced
// before any phase starts.
type SeedConfig struct {
	DBPath          string // MANGASEED_DB_PATH (optional, database.DefaultConfig fallback)
	ImageRoot       string // MANGASEED_IMAGE_ROOT
	StorageProvider string // MANGASEED_STORAGE ("local")
	FallbackAsset   string // MANGASEED_FALLBACK_ASSET
	DefaultPassword string // MANGASEED_DEFAULT_PASSWORD, used when a user record omits one
	Concurrency     int    // MANGASEED_CONCURRENCY, image download workers
}

const (
	defaultStorageProvider = "local"
	defaultFallbackAsset   = "assets/placeholder.jpg"
	defaultConcurrency     = 4
)

// LoadSeedConfig reads the seed configuration from the environment.
// A .env file in the working directory is honored when present.
func LoadSeedConfig() (SeedConfig, error) {
	// best-effort: a missing .env is not an error
	_ = godotenv.Load()

	cfg := SeedConfig{
		DBPath:          os.Getenv("MANGASEED_DB_PATH"),
		ImageRoot:       os.Getenv("MANGASEED_IMAGE_ROOT"),
		StorageProvider: os.Getenv("MANGASEED_STORAGE"),
		FallbackAsset:   os.Getenv("MANGASEED_FALLBACK_ASSET"),
		DefaultPassword: os.Getenv("MANGASEED_DEFAULT_PASSWORD"),
	}

	if cfg.ImageRoot == "" {
		return SeedConfig{}, fmt.Errorf("config: MANGASEED_IMAGE_ROOT is required")
	}
	if cfg.StorageProvider == "" {
		cfg.StorageProvider = defaultStorageProvider
	}
	if cfg.FallbackAsset == "" {
		cfg.FallbackAsset = defaultFallbackAsset
	}
	if cfg.DefaultPassword == "" {
		return SeedConfig{}, fmt.Errorf("config: MANGASEED_DEFAULT_PASSWORD is required (used for records without credentials)")
	}

	cfg.Concurrency = defaultConcurrency
	if raw := os.Getenv("MANGASEED_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return SeedConfig{}, fmt.Errorf("config: MANGASEED_CONCURRENCY must be a positive integer, got %q", raw)
		}
		cfg.Concurrency = n
	}

	return cfg, nil
}
