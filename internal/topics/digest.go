package topics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// DigestOutcome reports what one digest run did.
type DigestOutcome struct {
	// Skipped is true when the post count was under the threshold and
	// nothing was written.
	Skipped   bool
	PostCount int
	Extracted int
}

// Digester condenses a topic's recent posts into trending topics.
type Digester struct {
	topics     store.TopicStore
	summarizer generation.TopicSummarizer
	cfg        config.TopicsConfig
}

// NewDigester wires the digest stage.
func NewDigester(topics store.TopicStore, summarizer generation.TopicSummarizer, cfg config.TopicsConfig) *Digester {
	return &Digester{topics: topics, summarizer: summarizer, cfg: cfg}
}

// HandleDigestTopic processes one digest_topic job. Payload:
// {"topic_id": "<uuid>"}.
func (d *Digester) HandleDigestTopic(ctx context.Context, job *queue.Job) error {
	topicID, err := topicIDFrom(job)
	if err != nil {
		return err
	}
	_, err = d.Run(ctx, topicID)
	return err
}

// Run executes one digest for the topic and reports the outcome.
func (d *Digester) Run(ctx context.Context, topicID uuid.UUID) (*DigestOutcome, error) {
	topic, err := d.topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, store.ErrTopicNotFound) {
			return nil, queue.Permanent(err)
		}
		return nil, err
	}

	log := logger.FromContext(ctx).With("topic_slug", topic.Slug)

	now := time.Now().UTC()
	since := now.Add(-d.cfg.DigestLookback)
	if topic.LastDigestedAt != nil && topic.LastDigestedAt.After(since) {
		since = *topic.LastDigestedAt
	}

	count, err := d.topics.CountPostsSince(ctx, topicID, since)
	if err != nil {
		return nil, err
	}

	// Below the threshold a summary is noise. Nothing is written, and
	// LastDigestedAt stays put so these posts count toward the next run.
	if count < d.cfg.DigestThreshold {
		log.Info("digest skipped, not enough posts",
			"posts", count,
			"threshold", d.cfg.DigestThreshold)
		return &DigestOutcome{Skipped: true, PostCount: count}, nil
	}

	posts, err := d.topics.ListTopPosts(ctx, topicID, since, d.cfg.DigestMaxPosts)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(posts))
	for i, post := range posts {
		texts[i] = post.Text
	}

	result, err := d.summarizer.SummarizePosts(ctx, topic.Name, texts)
	if err != nil {
		return nil, fmt.Errorf("digest summarization failed: %w", err)
	}

	trending := make([]*domain.TrendingTopic, 0, len(result.Topics))
	for _, extracted := range result.Topics {
		ids, engagement := mapPostIndices(extracted.PostIndices, posts)

		item, err := domain.NewTrendingTopic(topic, extracted.Topic, extracted.Context, ids)
		if err != nil {
			log.Warn("dropping malformed extracted topic", "error", err)
			continue
		}
		item.TotalEngagement = engagement
		trending = append(trending, item)
	}

	if len(trending) > 0 {
		if err := d.topics.InsertTrending(ctx, trending); err != nil {
			return nil, err
		}
	}

	// The window advances even when extraction found nothing: the posts
	// were considered, and reprocessing them would not change that.
	if err := d.topics.UpdateDigestedAt(ctx, topicID, now); err != nil {
		return nil, err
	}

	log.Info("digest complete",
		"posts", len(posts),
		"trending", len(trending),
		"cost_usd", result.Usage.CostUSD)

	return &DigestOutcome{PostCount: len(posts), Extracted: len(trending)}, nil
}

// mapPostIndices resolves the summarizer's zero-based indices back to
// post IDs, summing engagement as it goes. Out-of-range indices come
// from model hallucination and are dropped.
func mapPostIndices(indices []int, posts []domain.TopicPost) ([]string, int64) {
	var ids []string
	var engagement int64
	for _, idx := range indices {
		if idx < 0 || idx >= len(posts) {
			continue
		}
		ids = append(ids, posts[idx].ID)
		engagement += posts[idx].Engagement
	}
	return ids, engagement
}
