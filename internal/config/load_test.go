package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	// Secrets have no defaults, so supply them via env.
	t.Setenv("STORYLOOM_DATABASE_URL", "postgres://localhost:5432/storyloom")
	t.Setenv("STORYLOOM_AI_GEMINI_API_KEY", "test-key")
	t.Setenv("STORYLOOM_STORAGE_BUCKET", "storyloom-media")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 10, cfg.Queues.MediaConcurrency)
	assert.Equal(t, 2, cfg.Queues.VideoConcurrency)
	assert.Equal(t, 3, cfg.Queues.ContentConcurrency)
	assert.Equal(t, 2, cfg.Queues.CleanupConcurrency)
	assert.Equal(t, 10, cfg.Queues.VideoLimiterMax)
	assert.Equal(t, time.Minute, cfg.Queues.VideoLimiterWindow)
	assert.Equal(t, "http://localhost:3001/render", cfg.Render.URL)
	assert.Equal(t, "https://api.twitter.com/2", cfg.ListAPI.BaseURL)
	assert.Equal(t, "0 */4 * * *", cfg.Scheduler.MediaCleanupCron)
	assert.Equal(t, "*/30 * * * *", cfg.Scheduler.TopicDispatchCron)
	assert.Equal(t, 90*time.Second, cfg.Topics.StaggerDelay)
	assert.Equal(t, 10, cfg.Topics.DigestThreshold)
	assert.Equal(t, 48*time.Hour, cfg.Topics.TrendingTTL)
}

func TestLoadFailsWithoutRequiredSettings(t *testing.T) {
	// No database URL, no API key, no bucket: validation must reject.
	t.Setenv("STORYLOOM_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("STORYLOOM_DATABASE_URL", "postgres://localhost:5432/storyloom")
	t.Setenv("STORYLOOM_AI_GEMINI_API_KEY", "test-key")
	t.Setenv("STORYLOOM_STORAGE_BUCKET", "storyloom-media")
	t.Setenv("STORYLOOM_SERVER_PORT", "9090")
	t.Setenv("STORYLOOM_QUEUES_VIDEO_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Queues.VideoConcurrency)
}
