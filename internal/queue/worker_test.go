package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T, client *Client) *Worker {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(client, log)
}

// fastAttach keeps polling tight so tests settle quickly.
var fastAttach = AttachOptions{Concurrency: 2, PollInterval: 5 * time.Millisecond}

func TestAttachValidatesHandlerMap(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)

	err := worker.Attach(QueueMedia, nil, fastAttach)
	assert.ErrorIs(t, err, ErrInvalidHandlerMap)

	err = worker.Attach(QueueMedia, map[string]Handler{"generate_avatar": nil}, fastAttach)
	assert.ErrorIs(t, err, ErrInvalidHandlerMap)

	noop := func(ctx context.Context, job *Job) error { return nil }

	err = worker.Attach(QueueMedia, map[string]Handler{"": noop}, fastAttach)
	assert.ErrorIs(t, err, ErrInvalidHandlerMap)

	require.NoError(t, worker.Attach(QueueMedia, map[string]Handler{"generate_avatar": noop}, fastAttach))
	err = worker.Attach(QueueMedia, map[string]Handler{"generate_avatar": noop}, fastAttach)
	assert.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestWorkerProcessesAndCompletesJob(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)
	ctx := context.Background()

	processed := make(chan *Job, 1)
	handlers := map[string]Handler{
		"generate_avatar": func(ctx context.Context, job *Job) error {
			processed <- job
			return nil
		},
	}
	require.NoError(t, worker.Attach(QueueMedia, handlers, fastAttach))
	require.NoError(t, worker.Start())
	defer worker.Stop()

	_, err := client.Enqueue(ctx, QueueMedia, "generate_avatar",
		map[string]any{"actor_id": "a-1"}, EnqueueOptions{JobID: "avatar-a-1"})
	require.NoError(t, err)

	select {
	case job := <-processed:
		assert.Equal(t, "avatar-a-1", job.ID)
		assert.Equal(t, "a-1", job.Payload["actor_id"])
		assert.Equal(t, 1, job.AttemptsMade)
	case <-time.After(5 * time.Second):
		t.Fatal("job was never processed")
	}

	require.Eventually(t, func() bool {
		job, err := client.getJob(ctx, QueueMedia, "avatar-a-1")
		return err == nil && job.State == JobStateCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWorkerRetriesThenMovesToDead(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)
	ctx := context.Background()

	var attempts atomic.Int32
	handlers := map[string]Handler{
		"sync_topic": func(ctx context.Context, job *Job) error {
			attempts.Add(1)
			return errors.New("upstream unavailable")
		},
	}
	require.NoError(t, worker.Attach(QueueContent, handlers, fastAttach))

	dead := make(chan *Job, 1)
	worker.SetFailedHandler(func(job *Job, err error) { dead <- job })

	require.NoError(t, worker.Start())
	defer worker.Stop()

	_, err := client.Enqueue(ctx, QueueContent, "sync_topic", nil, EnqueueOptions{
		JobID:    "topic-7",
		Attempts: 3,
		Backoff:  BackoffPolicy{Type: BackoffFixed, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	select {
	case job := <-dead:
		assert.Equal(t, "topic-7", job.ID)
		assert.Equal(t, 3, job.AttemptsMade, "all attempts consumed before going dead")
		assert.Contains(t, job.Error, "upstream unavailable")
	case <-time.After(10 * time.Second):
		t.Fatal("job never reached the dead list")
	}

	assert.Equal(t, int32(3), attempts.Load())

	deadJobs, err := client.DeadJobs(ctx, QueueContent, 10)
	require.NoError(t, err)
	require.Len(t, deadJobs, 1)
	assert.Equal(t, JobStateDead, deadJobs[0].State)
}

func TestPermanentFailureSkipsRemainingAttempts(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)
	ctx := context.Background()

	var attempts atomic.Int32
	handlers := map[string]Handler{
		"generate_avatar": func(ctx context.Context, job *Job) error {
			attempts.Add(1)
			return Permanent(errors.New("actor not found"))
		},
	}
	require.NoError(t, worker.Attach(QueueMedia, handlers, fastAttach))

	dead := make(chan *Job, 1)
	worker.SetFailedHandler(func(job *Job, err error) { dead <- job })

	require.NoError(t, worker.Start())
	defer worker.Stop()

	_, err := client.Enqueue(ctx, QueueMedia, "generate_avatar", nil, EnqueueOptions{
		JobID:    "avatar-missing",
		Attempts: 5,
		Backoff:  BackoffPolicy{Type: BackoffFixed, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	select {
	case job := <-dead:
		assert.Equal(t, 1, job.AttemptsMade, "permanent failures never retry")
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the dead list")
	}
	assert.Equal(t, int32(1), attempts.Load())
}

func TestUnknownJobNameGoesStraightToDead(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)
	ctx := context.Background()

	handlers := map[string]Handler{
		"generate_avatar": func(ctx context.Context, job *Job) error { return nil },
	}
	require.NoError(t, worker.Attach(QueueMedia, handlers, fastAttach))

	dead := make(chan error, 1)
	worker.SetFailedHandler(func(job *Job, err error) { dead <- err })

	require.NoError(t, worker.Start())
	defer worker.Stop()

	_, err := client.Enqueue(ctx, QueueMedia, "renamed_job", nil, EnqueueOptions{
		JobID:    "stray",
		Attempts: 5,
	})
	require.NoError(t, err)

	select {
	case failure := <-dead:
		assert.ErrorIs(t, failure, ErrUnknownJobName)
		assert.True(t, IsPermanent(failure))
	case <-time.After(5 * time.Second):
		t.Fatal("unregistered job was never settled")
	}
}

func TestStopDrainsInFlightJobs(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	handlers := map[string]Handler{
		"render_video": func(ctx context.Context, job *Job) error {
			close(started)
			<-release
			return nil
		},
	}
	require.NoError(t, worker.Attach(QueueVideo, handlers, fastAttach))
	require.NoError(t, worker.Start())

	_, err := client.Enqueue(ctx, QueueVideo, "render_video", nil, EnqueueOptions{JobID: "vid-1"})
	require.NoError(t, err)

	<-started

	stopped := make(chan struct{})
	go func() {
		worker.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned after the handler finished")
	}

	job, err := client.getJob(ctx, QueueVideo, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, JobStateCompleted, job.State, "in-flight work settles during drain")
}

func TestStartRequiresAttachment(t *testing.T) {
	client, _ := newTestClient(t)
	worker := newTestWorker(t, client)

	err := worker.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no queues attached")
}
