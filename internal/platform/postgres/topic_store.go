package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/store"
)

// TopicStore implements the store.TopicStore interface using PostgreSQL.
type TopicStore struct {
	db store.DBTX
}

// NewTopicStore creates a new TopicStore.
func NewTopicStore(db store.DBTX) *TopicStore {
	return &TopicStore{db: db}
}

// GetByID retrieves a curated topic by its ID.
func (s *TopicStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CuratedTopic, error) {
	query := `
		SELECT id, slug, name, topic_type, twitter_list_id, is_active,
		       last_synced_at, last_digested_at, created_at, updated_at
		FROM curated_topics
		WHERE id = $1
	`

	topic, err := scanCuratedTopic(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrTopicNotFound
		}
		return nil, fmt.Errorf("failed to get curated topic: %w", MapError(err))
	}

	return topic, nil
}

// ListSyncable returns active topics with a configured external list,
// ordered by slug so the dispatch stagger is deterministic.
func (s *TopicStore) ListSyncable(ctx context.Context) ([]*domain.CuratedTopic, error) {
	query := `
		SELECT id, slug, name, topic_type, twitter_list_id, is_active,
		       last_synced_at, last_digested_at, created_at, updated_at
		FROM curated_topics
		WHERE is_active = TRUE
		  AND twitter_list_id IS NOT NULL
		  AND twitter_list_id <> ''
		ORDER BY slug ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable topics: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var topics []*domain.CuratedTopic
	for rows.Next() {
		topic, err := scanCuratedTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curated topic row: %w", err)
		}
		topics = append(topics, topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating curated topic rows: %w", err)
	}

	return topics, nil
}

// UpdateSyncedAt stamps the topic's last successful sync time.
func (s *TopicStore) UpdateSyncedAt(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	return s.stampTopic(ctx, id, "last_synced_at", syncedAt)
}

// UpdateDigestedAt stamps the topic's last digest time.
func (s *TopicStore) UpdateDigestedAt(ctx context.Context, id uuid.UUID, digestedAt time.Time) error {
	return s.stampTopic(ctx, id, "last_digested_at", digestedAt)
}

func (s *TopicStore) stampTopic(ctx context.Context, id uuid.UUID, column string, at time.Time) error {
	// column is one of two compile-time constants, never user input.
	query := fmt.Sprintf(`
		UPDATE curated_topics
		SET %s = $1, updated_at = $2
		WHERE id = $3
	`, column)

	result, err := s.db.ExecContext(ctx, query, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update curated topic %s: %w", column, MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTopicNotFound
	}

	return nil
}

// InsertPosts stores captured posts, skipping external IDs already seen.
func (s *TopicStore) InsertPosts(ctx context.Context, topicID uuid.UUID, posts []domain.TopicPost) error {
	if len(posts) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	query := `
		INSERT INTO topic_posts (id, curated_topic_id, author_handle, text, engagement, posted_at, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	now := time.Now().UTC()
	for _, post := range posts {
		_, err := s.db.ExecContext(ctx, query,
			post.ID,
			topicID,
			post.AuthorHandle,
			post.Text,
			post.Engagement,
			post.PostedAt,
			now,
		)
		if err != nil {
			log.Error("failed to insert topic post",
				"topic_id", topicID,
				"post_id", post.ID,
				"error", err)
			return fmt.Errorf("failed to insert topic post: %w", MapError(err))
		}
	}

	return nil
}

// CountPostsSince returns how many posts were captured for the topic
// after the given time.
func (s *TopicStore) CountPostsSince(ctx context.Context, topicID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM topic_posts
		WHERE curated_topic_id = $1
		  AND captured_at > $2
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, topicID, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count topic posts: %w", MapError(err))
	}

	return count, nil
}

// ListTopPosts returns up to limit posts captured after since, highest
// engagement first.
func (s *TopicStore) ListTopPosts(
	ctx context.Context,
	topicID uuid.UUID,
	since time.Time,
	limit int,
) ([]domain.TopicPost, error) {
	query := `
		SELECT id, curated_topic_id, author_handle, text, engagement, posted_at
		FROM topic_posts
		WHERE curated_topic_id = $1
		  AND captured_at > $2
		ORDER BY engagement DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, topicID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top posts: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var posts []domain.TopicPost
	for rows.Next() {
		var post domain.TopicPost
		if err := rows.Scan(
			&post.ID,
			&post.TopicID,
			&post.AuthorHandle,
			&post.Text,
			&post.Engagement,
			&post.PostedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan topic post row: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic post rows: %w", err)
	}

	return posts, nil
}

// InsertTrending persists the topics extracted by one digest run.
func (s *TopicStore) InsertTrending(ctx context.Context, trending []*domain.TrendingTopic) error {
	query := `
		INSERT INTO trending_topics (
			id, curated_topic_id, topic_name, context, mention_count,
			total_engagement, sample_post_ids, rotation_group, detected_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, topic := range trending {
		sampleIDs, err := json.Marshal(topic.SamplePostIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal sample post IDs: %w", err)
		}

		_, err = s.db.ExecContext(ctx, query,
			topic.ID,
			topic.CuratedTopicID,
			topic.TopicName,
			topic.Context,
			topic.MentionCount,
			topic.TotalEngagement,
			sampleIDs,
			topic.RotationGroup,
			topic.DetectedAt,
			topic.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trending topic: %w", MapError(err))
		}
	}

	return nil
}

// DeleteExpiredTrending removes trending topics whose expiry has passed.
// Evergreen topics carry NULL expiry and never match.
func (s *TopicStore) DeleteExpiredTrending(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM trending_topics
		WHERE expires_at IS NOT NULL
		  AND expires_at <= $1
	`

	result, err := s.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired trending topics: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// rowScanner lets scanCuratedTopic work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCuratedTopic(row rowScanner) (*domain.CuratedTopic, error) {
	var (
		topic      domain.CuratedTopic
		listID     sql.NullString
		syncedAt   sql.NullTime
		digestedAt sql.NullTime
	)

	err := row.Scan(
		&topic.ID,
		&topic.Slug,
		&topic.Name,
		&topic.TopicType,
		&listID,
		&topic.IsActive,
		&syncedAt,
		&digestedAt,
		&topic.CreatedAt,
		&topic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if listID.Valid {
		topic.TwitterListID = &listID.String
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		topic.LastSyncedAt = &t
	}
	if digestedAt.Valid {
		t := digestedAt.Time
		topic.LastDigestedAt = &t
	}

	return &topic, nil
}
