package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// expireOnlyMediaStore stubs store.MediaStore for the sweeper, which
// only calls ExpirePending.
type expireOnlyMediaStore struct {
	expired int64
	err     error
	calls   int
}

func (s *expireOnlyMediaStore) Create(ctx context.Context, media *domain.Media) error { return nil }
func (s *expireOnlyMediaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	return nil, store.ErrMediaNotFound
}

func (s *expireOnlyMediaStore) CommitSession(
	ctx context.Context, sessionID uuid.UUID, ownerType domain.OwnerType, ownerID uuid.UUID,
) (bool, error) {
	return false, nil
}

func (s *expireOnlyMediaStore) SetContentKey(ctx context.Context, id uuid.UUID, key string, metadata map[string]any) error {
	return nil
}

func (s *expireOnlyMediaStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	n := s.expired
	// Rows expired once stay expired; a second pass finds nothing.
	s.expired = 0
	return n, nil
}

// purgeOnlyTopicStore stubs store.TopicStore for the trending sweeper.
type purgeOnlyTopicStore struct {
	deleted int64
	err     error
	calls   int
}

func (s *purgeOnlyTopicStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CuratedTopic, error) {
	return nil, store.ErrTopicNotFound
}
func (s *purgeOnlyTopicStore) ListSyncable(ctx context.Context) ([]*domain.CuratedTopic, error) {
	return nil, nil
}
func (s *purgeOnlyTopicStore) UpdateSyncedAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	return nil
}
func (s *purgeOnlyTopicStore) UpdateDigestedAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	return nil
}
func (s *purgeOnlyTopicStore) InsertPosts(ctx context.Context, id uuid.UUID, posts []domain.TopicPost) error {
	return nil
}
func (s *purgeOnlyTopicStore) CountPostsSince(ctx context.Context, id uuid.UUID, since time.Time) (int, error) {
	return 0, nil
}
func (s *purgeOnlyTopicStore) ListTopPosts(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]domain.TopicPost, error) {
	return nil, nil
}
func (s *purgeOnlyTopicStore) InsertTrending(ctx context.Context, trending []*domain.TrendingTopic) error {
	return nil
}

func (s *purgeOnlyTopicStore) DeleteExpiredTrending(ctx context.Context, now time.Time) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	n := s.deleted
	s.deleted = 0
	return n, nil
}

func sweepJob(name string) *queue.Job {
	return &queue.Job{ID: uuid.New().String(), Name: name}
}

func TestMediaSweeperIsIdempotent(t *testing.T) {
	media := &expireOnlyMediaStore{expired: 4}
	sweeper := NewMediaSweeper(media)

	require.NoError(t, sweeper.HandleExpireMedia(context.Background(), sweepJob(JobExpireMedia)))
	require.NoError(t, sweeper.HandleExpireMedia(context.Background(), sweepJob(JobExpireMedia)))
	assert.Equal(t, 2, media.calls, "second pass runs but finds nothing")
}

func TestMediaSweeperPropagatesStoreErrors(t *testing.T) {
	media := &expireOnlyMediaStore{err: errors.New("db down")}
	sweeper := NewMediaSweeper(media)

	err := sweeper.HandleExpireMedia(context.Background(), sweepJob(JobExpireMedia))
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err), "sweeps retry on transient failures")
}

func TestTrendingSweeperIsIdempotent(t *testing.T) {
	topics := &purgeOnlyTopicStore{deleted: 7}
	sweeper := NewTrendingSweeper(topics)

	require.NoError(t, sweeper.HandlePurgeTrending(context.Background(), sweepJob(JobPurgeTrending)))
	require.NoError(t, sweeper.HandlePurgeTrending(context.Background(), sweepJob(JobPurgeTrending)))
	assert.Equal(t, 2, topics.calls)
}

func TestTrendingSweeperPropagatesStoreErrors(t *testing.T) {
	topics := &purgeOnlyTopicStore{err: errors.New("db down")}
	sweeper := NewTrendingSweeper(topics)

	require.Error(t, sweeper.HandlePurgeTrending(context.Background(), sweepJob(JobPurgeTrending)))
}
