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

// ActorStore implements the store.ActorStore interface using PostgreSQL.
type ActorStore struct {
	db store.DBTX
}

// NewActorStore creates a new ActorStore.
func NewActorStore(db store.DBTX) *ActorStore {
	return &ActorStore{db: db}
}

// GetByID retrieves an actor by its ID.
func (s *ActorStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	query := `
		SELECT id, account_id, name, description, image_key, image_status,
		       character_continuity, avatar_image_key, analysis_tokens,
		       analysis_cost_usd, avatar_generation_cost_usd, metadata,
		       image_processed_at, created_at, updated_at
		FROM actors
		WHERE id = $1
	`

	var (
		actor       domain.Actor
		description sql.NullString
		imageKey    sql.NullString
		continuity  sql.NullString
		avatarKey   sql.NullString
		metadata    []byte
		processedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&actor.ID,
		&actor.AccountID,
		&actor.Name,
		&description,
		&imageKey,
		&actor.ImageStatus,
		&continuity,
		&avatarKey,
		&actor.AnalysisTokens,
		&actor.AnalysisCostUSD,
		&actor.AvatarGenerationCostUSD,
		&metadata,
		&processedAt,
		&actor.CreatedAt,
		&actor.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrActorNotFound
		}
		return nil, fmt.Errorf("failed to get actor: %w", MapError(err))
	}

	actor.Description = description.String
	actor.ImageKey = imageKey.String
	actor.CharacterContinuity = continuity.String
	actor.AvatarImageKey = avatarKey.String
	if processedAt.Valid {
		t := processedAt.Time
		actor.ImageProcessedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &actor.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actor metadata: %w", err)
		}
	}

	return &actor, nil
}

// UpdateImageStatus sets the pipeline status and merges metadata entries
// into the existing jsonb document.
func (s *ActorStore) UpdateImageStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ActorImageStatus,
	metadata map[string]any,
) error {
	log := logger.FromContext(ctx)

	merged, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal actor metadata: %w", err)
	}

	query := `
		UPDATE actors
		SET image_status = $1,
		    metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
		    updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, merged, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update actor image status",
			"actor_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update actor image status: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrActorNotFound
	}

	return nil
}

// SetContinuity persists the analysis stage output. Cost and tokens are
// accumulated, not overwritten: retried analyses still spent real money.
func (s *ActorStore) SetContinuity(
	ctx context.Context,
	id uuid.UUID,
	continuity string,
	tokens int,
	costUSD float64,
) error {
	query := `
		UPDATE actors
		SET character_continuity = $1,
		    analysis_tokens = analysis_tokens + $2,
		    analysis_cost_usd = analysis_cost_usd + $3,
		    updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query, continuity, tokens, costUSD, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set actor continuity: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrActorNotFound
	}

	return nil
}

// SetAvatar persists the avatar stage output and stamps completion.
func (s *ActorStore) SetAvatar(
	ctx context.Context,
	id uuid.UUID,
	imageKey string,
	costUSD float64,
	processedAt time.Time,
) error {
	query := `
		UPDATE actors
		SET avatar_image_key = $1,
		    avatar_generation_cost_usd = avatar_generation_cost_usd + $2,
		    image_processed_at = $3,
		    updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query, imageKey, costUSD, processedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set actor avatar: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrActorNotFound
	}

	return nil
}
