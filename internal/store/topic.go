package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// TopicStore defines the interface for curated topics, their captured
// posts, and the trending topics extracted from them.
type TopicStore interface {
	// GetByID retrieves a curated topic by its ID.
	// Returns ErrTopicNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CuratedTopic, error)

	// ListSyncable returns all active curated topics that have an
	// external list configured, ordered by slug for deterministic
	// dispatch staggering.
	ListSyncable(ctx context.Context) ([]*domain.CuratedTopic, error)

	// UpdateSyncedAt stamps the topic's last successful sync time.
	UpdateSyncedAt(ctx context.Context, id uuid.UUID, syncedAt time.Time) error

	// UpdateDigestedAt stamps the topic's last digest time. Advanced
	// after every digest run, including runs that extracted nothing, so
	// the same window is never reprocessed.
	UpdateDigestedAt(ctx context.Context, id uuid.UUID, digestedAt time.Time) error

	// InsertPosts stores posts captured from the topic's external list.
	// Posts already present (same external ID) are skipped.
	InsertPosts(ctx context.Context, topicID uuid.UUID, posts []domain.TopicPost) error

	// CountPostsSince returns how many posts for the topic were captured
	// after the given time.
	CountPostsSince(ctx context.Context, topicID uuid.UUID, since time.Time) (int, error)

	// ListTopPosts returns up to limit posts for the topic captured
	// after the given time, ordered by engagement descending.
	ListTopPosts(ctx context.Context, topicID uuid.UUID, since time.Time, limit int) ([]domain.TopicPost, error)

	// InsertTrending persists the trending topics extracted by a digest run.
	InsertTrending(ctx context.Context, trending []*domain.TrendingTopic) error

	// DeleteExpiredTrending removes trending topics whose expiry has
	// passed. Evergreen topics carry a null expiry and are exempt.
	// Returns the number of rows deleted. Idempotent.
	DeleteExpiredTrending(ctx context.Context, now time.Time) (int64, error)
}
