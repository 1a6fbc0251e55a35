package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom-api/internal/queue"
)

type recordingHandler struct {
	HandledCount int
	LastEvent    *GenerationRequestEvent
	HandlerError error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *GenerationRequestEvent) error {
	h.HandledCount++
	h.LastEvent = event
	return h.HandlerError
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewGenerationRequestEvent(t *testing.T) {
	event, err := NewGenerationRequestEvent(TypeAvatarRequested, map[string]string{"actor_id": "a1"})
	require.NoError(t, err)

	assert.NotEqual(t, "", event.ID.String())
	assert.Equal(t, TypeAvatarRequested, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, "a1", payload["actor_id"])
}

func TestNewGenerationRequestEventUnmarshalablePayload(t *testing.T) {
	_, err := NewGenerationRequestEvent(TypeAudioRequested, make(chan int))
	assert.Error(t, err)
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Run("emit with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(testLogger())
		event, err := NewGenerationRequestEvent(TypeAvatarRequested, map[string]string{"actor_id": "a1"})
		require.NoError(t, err)

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("all handlers receive the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(testLogger())
		first := &recordingHandler{}
		second := &recordingHandler{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)

		event, err := NewGenerationRequestEvent(TypeAudioRequested, map[string]string{"artifact_id": "f1"})
		require.NoError(t, err)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, 1, first.HandledCount)
		assert.Equal(t, 1, second.HandledCount)
		assert.Equal(t, event, first.LastEvent)
		assert.Equal(t, event, second.LastEvent)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(testLogger())
		failing := &recordingHandler{HandlerError: errors.New("handler error")}
		healthy := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(healthy)

		event, err := NewGenerationRequestEvent(TypePageImageRequested, map[string]string{"page_id": "p1"})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.ErrorContains(t, err, "handler error")
		assert.Equal(t, 1, failing.HandledCount)
		assert.Equal(t, 1, healthy.HandledCount)
	})
}

type enqueueRecord struct {
	Queue   string
	JobName string
	Payload map[string]any
	Opts    queue.EnqueueOptions
}

type recordingEnqueuer struct {
	calls []enqueueRecord
	err   error
}

func (e *recordingEnqueuer) Enqueue(
	_ context.Context,
	queueName string,
	jobName string,
	payload map[string]any,
	opts queue.EnqueueOptions,
) (*queue.JobHandle, error) {
	e.calls = append(e.calls, enqueueRecord{Queue: queueName, JobName: jobName, Payload: payload, Opts: opts})
	if e.err != nil {
		return nil, e.err
	}
	return &queue.JobHandle{ID: "job-1"}, nil
}

func TestQueueEventHandler(t *testing.T) {
	bindings := map[string]Binding{
		TypeAvatarRequested: {
			Queue:       "content",
			JobName:     "generate_avatar",
			DedupeField: "actor_id",
		},
		TypeSuggestionsRequested: {
			Queue:   "content",
			JobName: "generate_suggestions",
		},
	}

	t.Run("translates bound event to queue job", func(t *testing.T) {
		enq := &recordingEnqueuer{}
		handler := NewQueueEventHandler(enq, bindings, testLogger())

		event, err := NewGenerationRequestEvent(TypeAvatarRequested, map[string]string{"actor_id": "a1"})
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		require.Len(t, enq.calls, 1)
		assert.Equal(t, "content", enq.calls[0].Queue)
		assert.Equal(t, "generate_avatar", enq.calls[0].JobName)
		assert.Equal(t, "a1", enq.calls[0].Payload["actor_id"])
		assert.Equal(t, "generate_avatar:a1", enq.calls[0].Opts.JobID)
	})

	t.Run("no dedupe field leaves job id empty", func(t *testing.T) {
		enq := &recordingEnqueuer{}
		handler := NewQueueEventHandler(enq, bindings, testLogger())

		event, err := NewGenerationRequestEvent(TypeSuggestionsRequested, map[string]string{"account_id": "acc1"})
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		require.Len(t, enq.calls, 1)
		assert.Equal(t, "", enq.calls[0].Opts.JobID)
	})

	t.Run("unbound event is ignored", func(t *testing.T) {
		enq := &recordingEnqueuer{}
		handler := NewQueueEventHandler(enq, bindings, testLogger())

		event, err := NewGenerationRequestEvent("unknown.event", map[string]string{})
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Empty(t, enq.calls)
	})

	t.Run("enqueue failure surfaces", func(t *testing.T) {
		enq := &recordingEnqueuer{err: errors.New("redis gone")}
		handler := NewQueueEventHandler(enq, bindings, testLogger())

		event, err := NewGenerationRequestEvent(TypeAvatarRequested, map[string]string{"actor_id": "a1"})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.ErrorContains(t, err, "redis gone")
	})
}
