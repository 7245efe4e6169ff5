package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutEnvFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "simulated_annealing", cfg.Timetable.DefaultAlgorithm)
	assert.Equal(t, 2000, cfg.Timetable.DefaultIterations)
	assert.Equal(t, 30*time.Minute, cfg.Timetable.ProposalTTL)
	assert.False(t, cfg.Timetable.CacheEnabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ENABLE_TIMETABLE_CACHE", "true")
	t.Setenv("TIMETABLE_TIME_BUDGET", "3s")
	t.Setenv("TIMETABLE_CACHE_TTL", "not-a-duration")
	t.Setenv("TIMETABLE_WORKERS", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Timetable.CacheEnabled)
	assert.Equal(t, 3*time.Second, cfg.Timetable.TimeBudget)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL, "invalid durations fall back")
	assert.Equal(t, 6, cfg.Timetable.Workers)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	previous, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(previous) })
}
