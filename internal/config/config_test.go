package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "data/cards.json", cfg.Data.CardsPath)
	assert.Equal(t, "file", cfg.Archive.Backend)
	assert.Equal(t, "match_logs", cfg.Archive.Dir)
	assert.Equal(t, 15*time.Minute, cfg.Match.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Match.IdleCheckTick)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9100
log:
  level: debug
  development: true
archive:
  backend: none
match:
  idle_timeout: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "none", cfg.Archive.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Match.IdleTimeout)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep their defaults")
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a: map"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("PROJECTGM_SERVER_PORT", "9999")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}
