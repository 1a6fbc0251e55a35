package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// Job names handled by the topic pipelines.
const (
	JobDispatchTopics = "dispatch_topics"
	JobSyncTopic      = "sync_topic"
	JobDigestTopic    = "digest_topic"
)

// Enqueuer is the slice of the queue client the topic pipelines use.
type Enqueuer interface {
	Enqueue(
		ctx context.Context,
		queueName string,
		jobName string,
		payload map[string]any,
		opts queue.EnqueueOptions,
	) (*queue.JobHandle, error)
}

// Dispatcher fans one dispatch job out into per-topic sync jobs. Each
// sync is delayed by its topic's position in the list, spacing calls to
// the external list API instead of firing them all at once.
type Dispatcher struct {
	topics   store.TopicStore
	enqueuer Enqueuer
	cfg      config.TopicsConfig
}

// NewDispatcher wires the dispatch stage.
func NewDispatcher(topics store.TopicStore, enqueuer Enqueuer, cfg config.TopicsConfig) *Dispatcher {
	return &Dispatcher{topics: topics, enqueuer: enqueuer, cfg: cfg}
}

// HandleDispatchTopics processes one dispatch_topics job.
func (d *Dispatcher) HandleDispatchTopics(ctx context.Context, job *queue.Job) error {
	curated, err := d.topics.ListSyncable(ctx)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	dispatched := 0
	for i, topic := range curated {
		if !topic.Syncable() {
			continue
		}

		delay := time.Duration(i) * d.cfg.StaggerDelay
		_, err := d.enqueuer.Enqueue(ctx, queue.QueueContent, JobSyncTopic, map[string]any{
			"topic_id": topic.ID.String(),
		}, queue.EnqueueOptions{
			// One live sync per topic; a sync still waiting from the
			// previous dispatch absorbs this round.
			JobID:    "sync:" + topic.ID.String(),
			Delay:    delay,
			Attempts: d.cfg.SyncAttempts,
			Backoff: queue.BackoffPolicy{
				Type:  queue.BackoffExponential,
				Delay: d.cfg.SyncBackoff,
			},
		})
		if err != nil {
			return err
		}
		dispatched++

		log.Debug("dispatched topic sync",
			"topic_slug", topic.Slug,
			"delay_ms", delay.Milliseconds())
	}

	log.Info("topic dispatch complete", "topics", dispatched)
	return nil
}

// topicIDFrom extracts the topic UUID from a job payload. Malformed
// payloads are permanent failures.
func topicIDFrom(job *queue.Job) (uuid.UUID, error) {
	raw, ok := job.Payload["topic_id"].(string)
	if !ok {
		return uuid.Nil, queue.Permanent(fmt.Errorf("payload missing topic_id"))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, queue.Permanent(fmt.Errorf("topic_id is not a UUID: %v", err))
	}
	return id, nil
}
