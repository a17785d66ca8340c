// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Default engine parameters. The frontier point count matches the chart the
// presentation layer renders; the cache TTL matches the daily price refresh
// cadence of the upstream data collaborator.
const (
	DefaultFrontierPoints = 20
	DefaultCacheTTLHours  = 24
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the cache database (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	FrontierPoints int     // Number of points produced per efficient frontier
	CacheTTLHours  int     // TTL for cached covariance matrices and frontiers
	TradingDays    float64 // Trading days per year used to annualize daily risk
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("GO_PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		FrontierPoints: getEnvAsInt("FRONTIER_POINTS", DefaultFrontierPoints),
		CacheTTLHours:  getEnvAsInt("CACHE_TTL_HOURS", DefaultCacheTTLHours),
		TradingDays:    252,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.FrontierPoints < 2 {
		return fmt.Errorf("frontier needs at least 2 points, got %d", c.FrontierPoints)
	}
	if c.CacheTTLHours <= 0 {
		return fmt.Errorf("invalid cache TTL: %d hours", c.CacheTTLHours)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
