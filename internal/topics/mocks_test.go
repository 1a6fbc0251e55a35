package topics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

func testTopicsConfig() config.TopicsConfig {
	return config.TopicsConfig{
		StaggerDelay:    90 * time.Second,
		DigestThreshold: 10,
		DigestMaxPosts:  100,
		DigestLookback:  7 * 24 * time.Hour,
		TrendingTTL:     48 * time.Hour,
		SyncAttempts:    3,
		SyncBackoff:     time.Minute,
	}
}

func listID(s string) *string { return &s }

func testCuratedTopic(slug string) *domain.CuratedTopic {
	return &domain.CuratedTopic{
		ID:            uuid.New(),
		Slug:          slug,
		Name:          slug,
		TopicType:     domain.TopicTypeRealtime,
		TwitterListID: listID("list-" + slug),
		IsActive:      true,
	}
}

// fakeTopicStore implements store.TopicStore in memory.
type fakeTopicStore struct {
	topics   map[uuid.UUID]*domain.CuratedTopic
	syncable []*domain.CuratedTopic
	posts    map[uuid.UUID][]domain.TopicPost

	inserted    map[uuid.UUID][]domain.TopicPost
	trending    []*domain.TrendingTopic
	syncedAt    map[uuid.UUID]time.Time
	digestedAt  map[uuid.UUID]time.Time
	deletedUpTo time.Time
}

func newFakeTopicStore(curated ...*domain.CuratedTopic) *fakeTopicStore {
	s := &fakeTopicStore{
		topics:     make(map[uuid.UUID]*domain.CuratedTopic),
		posts:      make(map[uuid.UUID][]domain.TopicPost),
		inserted:   make(map[uuid.UUID][]domain.TopicPost),
		syncedAt:   make(map[uuid.UUID]time.Time),
		digestedAt: make(map[uuid.UUID]time.Time),
	}
	for _, topic := range curated {
		s.topics[topic.ID] = topic
		s.syncable = append(s.syncable, topic)
	}
	return s
}

func (s *fakeTopicStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CuratedTopic, error) {
	topic, ok := s.topics[id]
	if !ok {
		return nil, store.ErrTopicNotFound
	}
	return topic, nil
}

func (s *fakeTopicStore) ListSyncable(ctx context.Context) ([]*domain.CuratedTopic, error) {
	return s.syncable, nil
}

func (s *fakeTopicStore) UpdateSyncedAt(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	s.syncedAt[id] = syncedAt
	return nil
}

func (s *fakeTopicStore) UpdateDigestedAt(ctx context.Context, id uuid.UUID, digestedAt time.Time) error {
	s.digestedAt[id] = digestedAt
	return nil
}

func (s *fakeTopicStore) InsertPosts(ctx context.Context, topicID uuid.UUID, posts []domain.TopicPost) error {
	s.inserted[topicID] = append(s.inserted[topicID], posts...)
	s.posts[topicID] = append(s.posts[topicID], posts...)
	return nil
}

func (s *fakeTopicStore) CountPostsSince(ctx context.Context, topicID uuid.UUID, since time.Time) (int, error) {
	return len(s.posts[topicID]), nil
}

func (s *fakeTopicStore) ListTopPosts(ctx context.Context, topicID uuid.UUID, since time.Time, limit int) ([]domain.TopicPost, error) {
	posts := s.posts[topicID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *fakeTopicStore) InsertTrending(ctx context.Context, trending []*domain.TrendingTopic) error {
	s.trending = append(s.trending, trending...)
	return nil
}

func (s *fakeTopicStore) DeleteExpiredTrending(ctx context.Context, now time.Time) (int64, error) {
	s.deletedUpTo = now
	return 0, nil
}

// enqueueCall records one enqueue for assertions.
type enqueueCall struct {
	Queue   string
	JobName string
	Payload map[string]any
	Opts    queue.EnqueueOptions
}

// fakeEnqueuer records enqueued jobs.
type fakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (e *fakeEnqueuer) Enqueue(
	ctx context.Context, queueName, jobName string, payload map[string]any, opts queue.EnqueueOptions,
) (*queue.JobHandle, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls = append(e.calls, enqueueCall{Queue: queueName, JobName: jobName, Payload: payload, Opts: opts})
	return &queue.JobHandle{ID: opts.JobID}, nil
}

// fakeListSource implements ListSource.
type fakeListSource struct {
	posts []domain.TopicPost
	err   error
	calls []string
}

func (s *fakeListSource) FetchPosts(ctx context.Context, listID string, since time.Time) ([]domain.TopicPost, error) {
	s.calls = append(s.calls, listID)
	if s.err != nil {
		return nil, s.err
	}
	return s.posts, nil
}

// fakeSummarizer implements generation.TopicSummarizer.
type fakeSummarizer struct {
	result *generation.DigestResult
	err    error
	inputs [][]string
}

func (s *fakeSummarizer) SummarizePosts(ctx context.Context, topic string, posts []string) (*generation.DigestResult, error) {
	s.inputs = append(s.inputs, posts)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// testJob builds a job carrying a topic ID payload.
func testJob(name string, topicID uuid.UUID) *queue.Job {
	return &queue.Job{
		ID:      uuid.New().String(),
		Name:    name,
		Payload: map[string]any{"topic_id": topicID.String()},
	}
}
