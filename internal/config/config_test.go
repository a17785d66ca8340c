package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, DefaultFrontierPoints, cfg.FrontierPoints)
	assert.Equal(t, DefaultCacheTTLHours, cfg.CacheTTLHours)
	assert.Equal(t, 252.0, cfg.TradingDays)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("FRONTIER_POINTS", "30")
	t.Setenv("CACHE_TTL_HOURS", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 30, cfg.FrontierPoints)
	assert.Equal(t, 6, cfg.CacheTTLHours)
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8001, FrontierPoints: 20, CacheTTLHours: 24}
	assert.NoError(t, valid.Validate())

	t.Run("bad port", func(t *testing.T) {
		cfg := valid
		cfg.Port = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("too few frontier points", func(t *testing.T) {
		cfg := valid
		cfg.FrontierPoints = 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad cache ttl", func(t *testing.T) {
		cfg := valid
		cfg.CacheTTLHours = 0
		assert.Error(t, cfg.Validate())
	})
}
