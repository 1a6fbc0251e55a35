package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/platform/s3store"
	"github.com/storyloom/storyloom-api/internal/queue"
)

// Job names handled by the pipelines.
const (
	JobGenerateAvatar    = "generate_avatar"
	JobGenerateAudio     = "generate_audio"
	JobGeneratePageAudio = "generate_page_audio"
	JobRenderVideo       = "render_video"
	JobGeneratePageImage = "generate_page_image"
	JobGeneratePost      = "generate_post"
)

// Storage is the slice of the object store the pipelines use.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, variant s3store.Variant, ttl time.Duration) (string, error)
}

// Enqueuer is the slice of the queue client used for job chaining.
type Enqueuer interface {
	Enqueue(
		ctx context.Context,
		queueName string,
		jobName string,
		payload map[string]any,
		opts queue.EnqueueOptions,
	) (*queue.JobHandle, error)
}

// payloadID extracts a UUID field from a job payload. A missing or
// malformed ID is a permanent failure: the payload will not improve on
// retry.
func payloadID(job *queue.Job, field string) (uuid.UUID, error) {
	raw, ok := job.Payload[field]
	if !ok {
		return uuid.Nil, queue.Permanent(fmt.Errorf("payload missing %q", field))
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, queue.Permanent(fmt.Errorf("payload field %q is not a string", field))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, queue.Permanent(fmt.Errorf("payload field %q is not a UUID: %v", field, err))
	}
	return id, nil
}

// payloadString extracts a non-empty string field from a job payload.
func payloadString(job *queue.Job, field string) (string, error) {
	raw, ok := job.Payload[field]
	if !ok {
		return "", queue.Permanent(fmt.Errorf("payload missing %q", field))
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", queue.Permanent(fmt.Errorf("payload field %q is not a non-empty string", field))
	}
	return s, nil
}
