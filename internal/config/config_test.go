package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.True(t, cfg.Stream)
	assert.Equal(t, 2000, cfg.PollIntervalMS)

	// The file was written so the user can edit it
	_, err = os.Stat(path)
	require.NoError(t, err)

	// Loading again reads the written file
	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ServerURL, again.ServerURL)
}

func TestLoadFromExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_url": "https://docs.example.com",
		"auth_token": "secret",
		"model": "gpt-test",
		"poll_interval_ms": 500
	}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", cfg.ServerURL)
	assert.Equal(t, "secret", cfg.AuthToken)
	assert.Equal(t, "gpt-test", cfg.Model)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
}

func TestLoadFromDefaultsPollInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url": "http://x.test"}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.PollIntervalMS)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DQC_SERVER_URL", "http://env.test")
	t.Setenv("DQC_AUTH_TOKEN", "env-token")
	t.Setenv("DQC_MODEL", "env-model")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url": "http://file.test"}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.test", cfg.ServerURL)
	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, "env-model", cfg.Model)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.ServerURL = ""
	assert.Error(t, cfg.Validate())

	cfg.ServerURL = "not a url"
	assert.Error(t, cfg.Validate())

	cfg.ServerURL = "http://localhost:8000"
	cfg.PollIntervalMS = 0
	assert.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/.dqc/dqc.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".dqc", "dqc.db"), expanded)

	absolute, err := ExpandPath("/var/tmp/dqc.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/dqc.db", absolute)
}
