package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30, cfg.Coverage.MaxAttemptAgeDays)
	assert.Equal(t, 24, cfg.Reconcile.MinAgeHours)
	assert.Equal(t, 10.0, cfg.Reconcile.RatePerSecond)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARENACTL_STORE_DRIVER", "sqlite")
	t.Setenv("ARENACTL_SERVER_PORT", "9090")
	t.Setenv("ARENACTL_LOG_LEVEL", "debug")
	t.Setenv("ARENACTL_SERVER_ALLOWED_ORIGINS", "https://admin.example.org,https://ops.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"https://admin.example.org", "https://ops.example.org"},
		cfg.Server.AllowedOrigins)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shout", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
