package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
remote:
  url: http://store.internal:9000
auth:
  user: kim
  secret: s3cret
session:
  flush_interval: 2s
  cooldown: 30s
server:
  cors_origins: [http://localhost:5173]
`))
	require.NoError(t, err)
	assert.Equal(t, "http://store.internal:9000", cfg.Remote.URL)
	assert.Equal(t, "kim", cfg.Auth.User)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Second, cfg.Session.FlushInterval)
	assert.Equal(t, 30*time.Second, cfg.Session.Cooldown)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	// untouched
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "remote:\n  ulr: typo\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvWins(t *testing.T) {
	t.Setenv("GRIDSYNC_USER", "lee")
	t.Setenv("GRIDSYNC_COOLDOWN", "45")
	t.Setenv("GRIDSYNC_FLUSH_INTERVAL", "250ms")
	t.Setenv("GRIDSYNC_CALL_TIMEOUT", "soon")
	t.Setenv("GRIDSYNC_CORS_ORIGINS", "http://a,http://b")

	cfg, err := Load(writeConfig(t, "auth:\n  user: kim\n"))
	require.NoError(t, err)
	assert.Equal(t, "lee", cfg.Auth.User)
	assert.Equal(t, 45*time.Second, cfg.Session.Cooldown)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.FlushInterval)
	assert.Equal(t, 20*time.Second, cfg.Session.CallTimeout, "bad value keeps fallback")
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = ""
	cfg.Session.FlushInterval = 0
	cfg.Session.Cooldown = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
	assert.Contains(t, err.Error(), "session.flush_interval")
	assert.Contains(t, err.Error(), "session.cooldown")
}
