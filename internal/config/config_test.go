package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://backend.internal")

	cfg, err := LoadConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppConfig.Port)
	assert.Equal(t, "memory", cfg.StoreConfig.Backend)
	assert.Equal(t, "/login", cfg.RoutesConfig.LoginPath)
	assert.Equal(t, "/dashboard", cfg.RoutesConfig.DashboardPath)
	assert.Equal(t, "/adminLogin", cfg.UpstreamConfig.LoginEndpoint)
	assert.Equal(t, 15*time.Second, cfg.UpstreamConfig.Timeout)
	assert.False(t, cfg.DevAuthConfig.Enabled)
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://backend.internal")
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := LoadConfig(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConfig_PostgresBackendNeedsDSN(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://backend.internal")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadConfig(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConfig_RequiresUpstreamUnlessDevAuth(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	t.Setenv("DEV_AUTH_ENABLED", "false")

	_, err := LoadConfig(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://backend.internal")
	t.Setenv("APP_READ_TIMEOUT", "not-a-duration")

	_, err := LoadConfig(zap.NewNop())
	assert.Error(t, err)
}
