package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom-api/internal/cleanup"
	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/pipeline"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/topics"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		MediaCleanupCron:  "0 */4 * * *",
		SuggestionsCron:   "0 * * * *",
		TopicDispatchCron: "*/30 * * * *",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *queue.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := queue.NewClient(rdb, testLogger())
	return NewManager(client, testSchedulerConfig(), testLogger()), client
}

func TestRegisterInstallsAllSchedules(t *testing.T) {
	manager, client := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Register(ctx))

	jobs, err := client.ScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	byKey := make(map[string]queue.ScheduledJob, len(jobs))
	for _, job := range jobs {
		byKey[job.Key] = job
	}

	media := byKey[KeyMediaCleanup]
	assert.Equal(t, queue.QueueCleanup, media.Queue)
	assert.Equal(t, cleanup.JobExpireMedia, media.Name)
	assert.Equal(t, "0 */4 * * *", media.CronPattern)
	assert.False(t, media.NextRun.IsZero())

	trending := byKey[KeyTrendingCleanup]
	assert.Equal(t, queue.QueueCleanup, trending.Queue)
	assert.Equal(t, cleanup.JobPurgeTrending, trending.Name)

	suggestions := byKey[KeySuggestions]
	assert.Equal(t, queue.QueueContent, suggestions.Queue)
	assert.Equal(t, pipeline.JobDispatchSuggestions, suggestions.Name)
	assert.Equal(t, "0 * * * *", suggestions.CronPattern)

	dispatch := byKey[KeyTopicDispatch]
	assert.Equal(t, topics.JobDispatchTopics, dispatch.Name)
	assert.Equal(t, "*/30 * * * *", dispatch.CronPattern)
}

func TestRegisterTwiceDoesNotDuplicate(t *testing.T) {
	manager, client := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Register(ctx))
	require.NoError(t, manager.Register(ctx))

	jobs, err := client.ScheduledJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 4)
}

func TestDisabledTopicDispatchSkipsScheduleAndTrigger(t *testing.T) {
	manager, client := newTestManager(t)
	ctx := context.Background()

	manager.DisableTopicDispatch()
	require.NoError(t, manager.Register(ctx))

	jobs, err := client.ScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.NotEqual(t, KeyTopicDispatch, job.Key)
	}

	_, err = manager.TriggerManualTopicDispatch(ctx)
	assert.ErrorIs(t, err, ErrTopicDispatchDisabled)

	// The other recurring work is unaffected.
	handle, err := manager.TriggerManualSuggestionsForAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
}

func TestRegisterInvalidCronFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testSchedulerConfig()
	cfg.SuggestionsCron = "not a cron"
	manager := NewManager(queue.NewClient(rdb, testLogger()), cfg, testLogger())

	err := manager.Register(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrInvalidCronPattern)
}

func TestManualTriggers(t *testing.T) {
	manager, client := newTestManager(t)
	ctx := context.Background()

	t.Run("cleanup", func(t *testing.T) {
		handle, err := manager.TriggerManualCleanup(ctx, cleanup.JobExpireMedia, queue.EnqueueOptions{})
		require.NoError(t, err)
		assert.NotEmpty(t, handle.ID)

		depth, err := client.ReadyDepth(ctx, queue.QueueCleanup)
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)
	})

	t.Run("unknown cleanup type", func(t *testing.T) {
		_, err := manager.TriggerManualCleanup(ctx, "defragment_everything", queue.EnqueueOptions{})
		assert.ErrorContains(t, err, "unknown cleanup job type")
	})

	t.Run("topic dispatch", func(t *testing.T) {
		handle, err := manager.TriggerManualTopicDispatch(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, handle.ID)

		depth, err := client.ReadyDepth(ctx, queue.QueueContent)
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)
	})

	t.Run("suggestions for all", func(t *testing.T) {
		handle, err := manager.TriggerManualSuggestionsForAll(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, handle.ID)

		depth, err := client.ReadyDepth(ctx, queue.QueueContent)
		require.NoError(t, err)
		assert.Equal(t, int64(2), depth)
	})
}

type failingClient struct {
	schedulerClient
	resetErr error
}

func (c *failingClient) ResetRepeatables(ctx context.Context) error {
	return c.resetErr
}

func TestRegisterResetFailure(t *testing.T) {
	manager := NewManager(
		&failingClient{resetErr: errors.New("redis gone")},
		testSchedulerConfig(),
		testLogger(),
	)

	err := manager.Register(context.Background())
	assert.ErrorContains(t, err, "failed to reset repeatable jobs")
}
