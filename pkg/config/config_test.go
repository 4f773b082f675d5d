package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("IMPORT_MAX_UPLOAD_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(20*1024*1024), cfg.Imports.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Reports.WorkerRetries)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("ALLOWED_ORIGINS", "https://mne.example.org/, https://admin.example.org")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("IMPORT_MAX_UPLOAD_SIZE", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, []string{"https://mne.example.org/", "https://admin.example.org"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, int64(1024), cfg.Imports.MaxUploadBytes)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}

func TestLoadAdminBootstrap(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "admin@mne.example.org")
	t.Setenv("ADMIN_PASSWORD", "changeme123")
	t.Setenv("ADMIN_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "admin@mne.example.org", cfg.Admin.Email)
	assert.Equal(t, "changeme123", cfg.Admin.Password)
}
