package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyloom/storyloom-api/internal/queue"
)

// enqueuer is the slice of the queue client the handler needs.
type enqueuer interface {
	Enqueue(
		ctx context.Context,
		queueName string,
		jobName string,
		payload map[string]any,
		opts queue.EnqueueOptions,
	) (*queue.JobHandle, error)
}

// Binding maps one event type to its queue placement.
type Binding struct {
	Queue   string
	JobName string
	// DedupeField, when set, derives the job's dedupe ID from this
	// payload field so repeated requests for the same entity collapse.
	DedupeField string
}

// QueueEventHandler translates generation request events into queue jobs.
type QueueEventHandler struct {
	enqueuer enqueuer
	bindings map[string]Binding
	logger   *slog.Logger
}

// NewQueueEventHandler creates a handler with the given event bindings.
func NewQueueEventHandler(enq enqueuer, bindings map[string]Binding, logger *slog.Logger) *QueueEventHandler {
	return &QueueEventHandler{
		enqueuer: enq,
		bindings: bindings,
		logger:   logger.With("component", "queue_event_handler"),
	}
}

// HandleEvent enqueues the job bound to the event's type. Events with no
// binding are ignored; another handler may own them.
func (h *QueueEventHandler) HandleEvent(ctx context.Context, event *GenerationRequestEvent) error {
	bound, ok := h.bindings[event.Type]
	if !ok {
		h.logger.Debug("ignoring event with no queue binding",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload map[string]any
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	opts := queue.EnqueueOptions{}
	if bound.DedupeField != "" {
		if value, ok := payload[bound.DedupeField].(string); ok && value != "" {
			opts.JobID = bound.JobName + ":" + value
		}
	}

	handle, err := h.enqueuer.Enqueue(ctx, bound.Queue, bound.JobName, payload, opts)
	if err != nil {
		return fmt.Errorf("failed to enqueue job for event: %w", err)
	}

	h.logger.Info("event translated to queue job",
		"event_type", event.Type,
		"event_id", event.ID,
		"queue", bound.Queue,
		"job_name", bound.JobName,
		"job_id", handle.ID)
	return nil
}

var _ EventHandler = (*QueueEventHandler)(nil)
