package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "lobby_events", cfg.RedisChannel)
	assert.Equal(t, time.Minute, cfg.LobbyResync)
	assert.Equal(t, 10*time.Second, cfg.ActionTimeout)
	assert.False(t, cfg.JSONLogs())
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOBBY_RESYNC_INTERVAL", "15s")
	t.Setenv("MAPS_DIR", "/maps")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.AppPort)
	assert.True(t, cfg.JSONLogs())
	assert.Equal(t, 15*time.Second, cfg.LobbyResync)
	assert.Equal(t, "/maps", cfg.MapsDir)
}

func TestValidate_RequiresSecret(t *testing.T) {
	cfg := &Config{LobbyResync: time.Minute, ActionTimeout: time.Second, TurnTimeout: time.Second}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "x"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("LOBBY_RESYNC_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
