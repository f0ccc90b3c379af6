package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "matchkit.db", cfg.DB.Path)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.True(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATCHKIT_SERVER_PORT", "9090")
	t.Setenv("MATCHKIT_DB_PATH", "/tmp/test.db")
	t.Setenv("MATCHKIT_TRANSPORT", "http")
	t.Setenv("MATCHKIT_AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/tmp/test.db", cfg.DB.Path)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.False(t, cfg.Auth.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
profile:
  path: fixtures/people.yaml
`), 0o644))
	t.Setenv("MATCHKIT_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "fixtures/people.yaml", cfg.Profile.Path)
}

func TestLoad_InvalidTransport(t *testing.T) {
	t.Setenv("MATCHKIT_TRANSPORT", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)
}
