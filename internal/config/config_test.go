package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir 切换到不含 .env 的临时目录
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kaowu", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":7012", cfg.Addr())

	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "host=localhost port=5432 user=kaowu password=kaowu123 dbname=kaowu sslmode=disable", cfg.Database.DSN())

	assert.Equal(t, "/api/v1", cfg.API.Prefix)
	assert.Equal(t, []string{"*"}, cfg.API.CORS.Origins)
	assert.Equal(t, int64(10<<20), cfg.API.MaxBodyBytes)
	assert.Empty(t, cfg.API.Auth.Keys)
	assert.Equal(t, 600, cfg.API.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.API.RateLimit.Window)

	assert.Equal(t, "sa", cfg.Solver.DefaultAlgorithm)
	assert.Equal(t, 300*time.Second, cfg.Solver.MaxRuntime)
	assert.Equal(t, 4, cfg.Solver.MaxConcurrent)
	assert.Equal(t, 200, cfg.Solver.LogBuffer)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("API_CORS_ORIGINS", "https://a.example.com, https://b.example.com ,")
	t.Setenv("API_KEYS", "ops:k1,viewer:k2:read")
	t.Setenv("SOLVER_DEFAULT_ALGORITHM", "pso")
	t.Setenv("SOLVER_MAX_RUNTIME", "90s")
	t.Setenv("SOLVER_RETAIN_FINISHED", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.App.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.API.CORS.Origins)
	assert.Equal(t, []string{"ops:k1", "viewer:k2:read"}, cfg.API.Auth.Keys)
	assert.Equal(t, "pso", cfg.Solver.DefaultAlgorithm)
	assert.Equal(t, 90*time.Second, cfg.Solver.MaxRuntime)
	assert.Equal(t, time.Hour, cfg.Solver.RetainFinished, "invalid durations fall back to the default")
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a ,, b "))
}
