package topics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// ListSource reads posts from a curated topic's external list. The
// concrete platform client lives behind this seam.
type ListSource interface {
	FetchPosts(ctx context.Context, listID string, since time.Time) ([]domain.TopicPost, error)
}

// Syncer ingests a topic's external list into the post store and
// triggers the digest behind a successful sync.
type Syncer struct {
	topics   store.TopicStore
	source   ListSource
	enqueuer Enqueuer
	cfg      config.TopicsConfig
}

// NewSyncer wires the sync stage.
func NewSyncer(topics store.TopicStore, source ListSource, enqueuer Enqueuer, cfg config.TopicsConfig) *Syncer {
	return &Syncer{topics: topics, source: source, enqueuer: enqueuer, cfg: cfg}
}

// HandleSyncTopic processes one sync_topic job. Payload:
// {"topic_id": "<uuid>"}.
func (s *Syncer) HandleSyncTopic(ctx context.Context, job *queue.Job) error {
	topicID, err := topicIDFrom(job)
	if err != nil {
		return err
	}

	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, store.ErrTopicNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	log := logger.FromContext(ctx).With("topic_slug", topic.Slug)

	if !topic.Syncable() {
		// Deactivated between dispatch and execution.
		log.Info("topic no longer syncable, skipping")
		return nil
	}

	now := time.Now().UTC()
	since := now.Add(-s.cfg.DigestLookback)
	if topic.LastSyncedAt != nil && topic.LastSyncedAt.After(since) {
		since = *topic.LastSyncedAt
	}

	posts, err := s.source.FetchPosts(ctx, *topic.TwitterListID, since)
	if err != nil {
		return fmt.Errorf("failed to fetch list posts: %w", err)
	}

	if len(posts) > 0 {
		if err := s.topics.InsertPosts(ctx, topicID, posts); err != nil {
			return err
		}
	}

	if err := s.topics.UpdateSyncedAt(ctx, topicID, now); err != nil {
		return err
	}

	log.Info("topic synced", "posts", len(posts))

	// Digest follows every sync; the threshold check inside the digest
	// decides whether there is enough material.
	_, err = s.enqueuer.Enqueue(ctx, queue.QueueContent, JobDigestTopic, map[string]any{
		"topic_id": topicID.String(),
	}, queue.EnqueueOptions{
		JobID: "digest:" + topicID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to chain digest: %w", err)
	}
	return nil
}
