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

// MediaStore implements the store.MediaStore interface using PostgreSQL.
type MediaStore struct {
	db store.DBTX
}

// NewMediaStore creates a new MediaStore.
func NewMediaStore(db store.DBTX) *MediaStore {
	return &MediaStore{db: db}
}

// Create persists a media row after validating it.
func (s *MediaStore) Create(ctx context.Context, media *domain.Media) error {
	log := logger.FromContext(ctx)

	if err := media.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metadata, err := marshalMetadata(media.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal media metadata: %w", err)
	}

	query := `
		INSERT INTO media (
			id, account_id, owner_type, owner_id, media_type, status,
			upload_session_id, expires_at, image_key, audio_key, video_key,
			metadata, created_at, updated_at
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = s.db.ExecContext(ctx, query,
		media.ID,
		media.AccountID,
		string(media.OwnerType),
		nullableUUID(media.OwnerID),
		media.MediaType,
		media.Status,
		media.UploadSessionID,
		media.ExpiresAt,
		media.ImageKey,
		media.AudioKey,
		media.VideoKey,
		metadata,
		media.CreatedAt,
		media.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create media row",
			"media_id", media.ID,
			"status", media.Status,
			"error", err)
		return fmt.Errorf("failed to create media: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a media row by its ID.
func (s *MediaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	query := `
		SELECT id, account_id, owner_type, owner_id, media_type, status,
		       upload_session_id, expires_at, image_key, audio_key, video_key,
		       metadata, created_at, updated_at
		FROM media
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)

	var (
		media     domain.Media
		ownerType sql.NullString
		ownerID   uuid.NullUUID
		sessionID uuid.NullUUID
		expiresAt sql.NullTime
		imageKey  sql.NullString
		audioKey  sql.NullString
		videoKey  sql.NullString
		metadata  []byte
	)

	err := row.Scan(
		&media.ID,
		&media.AccountID,
		&ownerType,
		&ownerID,
		&media.MediaType,
		&media.Status,
		&sessionID,
		&expiresAt,
		&imageKey,
		&audioKey,
		&videoKey,
		&metadata,
		&media.CreatedAt,
		&media.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media: %w", MapError(err))
	}

	media.OwnerType = domain.OwnerType(ownerType.String)
	if ownerID.Valid {
		media.OwnerID = ownerID.UUID
	}
	if sessionID.Valid {
		media.UploadSessionID = &sessionID.UUID
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		media.ExpiresAt = &t
	}
	media.ImageKey = imageKey.String
	media.AudioKey = audioKey.String
	media.VideoKey = videoKey.String

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &media.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal media metadata: %w", err)
		}
	}

	return &media, nil
}

// CommitSession attempts the pending→committed transition. The guard
// `status = 'pending' AND expires_at > now` makes the update conditional:
// under concurrent commits exactly one statement affects a row, and the
// losers see committed=false without an error.
func (s *MediaStore) CommitSession(
	ctx context.Context,
	sessionID uuid.UUID,
	ownerType domain.OwnerType,
	ownerID uuid.UUID,
) (bool, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE media
		SET status = 'committed',
		    owner_type = $1,
		    owner_id = $2,
		    upload_session_id = NULL,
		    expires_at = NULL,
		    updated_at = $3
		WHERE upload_session_id = $4
		  AND status = 'pending'
		  AND expires_at > $3
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, ownerType, ownerID, now, sessionID)
	if err != nil {
		log.Error("failed to commit media session",
			"session_id", sessionID,
			"owner_type", ownerType,
			"error", err)
		return false, fmt.Errorf("failed to commit media session: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Lost the race, or the session already expired. Not an error.
		log.Debug("media commit was a no-op",
			"session_id", sessionID)
		return false, nil
	}

	return true, nil
}

// SetContentKey stores a generated content key on the row. The key lands
// in the column matching the row's media type; metadata entries are
// merged additively.
func (s *MediaStore) SetContentKey(
	ctx context.Context,
	id uuid.UUID,
	key string,
	metadata map[string]any,
) error {
	merged, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal media metadata: %w", err)
	}

	query := `
		UPDATE media
		SET image_key = CASE WHEN media_type = 'image' THEN $2 ELSE image_key END,
		    audio_key = CASE WHEN media_type = 'audio' THEN $2 ELSE audio_key END,
		    video_key = CASE WHEN media_type = 'video' THEN $2 ELSE video_key END,
		    metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb,
		    updated_at = $4
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, key, merged, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set media content key: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrMediaNotFound
	}

	return nil
}

// ExpirePending bulk-transitions overdue pending rows to expired. Rows
// that raced to committed no longer match the status guard and are left
// alone; running the sweep twice is a no-op the second time.
func (s *MediaStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE media
		SET status = 'expired',
		    upload_session_id = NULL,
		    updated_at = $1
		WHERE status = 'pending'
		  AND expires_at <= $1
	`

	result, err := s.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		log.Error("failed to expire pending media", "error", err)
		return 0, fmt.Errorf("failed to expire pending media: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// marshalMetadata serializes a metadata map for a jsonb column, treating
// nil as the empty object.
func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

// nullableUUID maps the zero UUID to NULL for optional FK columns.
func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
