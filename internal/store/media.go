package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// MediaStore defines the interface for persisting media rows and driving
// their lifecycle.
type MediaStore interface {
	// Create persists a media row (pending or committed); the row must
	// pass domain validation.
	Create(ctx context.Context, media *domain.Media) error

	// GetByID retrieves a media row by its ID.
	// Returns ErrMediaNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error)

	// CommitSession attempts the pending→committed transition for the
	// given upload session, binding the owner and clearing the session
	// and expiry. The update is conditional on `status='pending' AND
	// expires_at > now`, so exactly one of any number of concurrent
	// commits succeeds. Losing racers get committed=false and a nil
	// error: a lost race is a no-op, not a failure.
	CommitSession(
		ctx context.Context,
		sessionID uuid.UUID,
		ownerType domain.OwnerType,
		ownerID uuid.UUID,
	) (committed bool, err error)

	// SetContentKey stores a generated content key (image/audio/video
	// depending on the media type) and optional metadata on the row.
	SetContentKey(ctx context.Context, id uuid.UUID, key string, metadata map[string]any) error

	// ExpirePending bulk-transitions pending rows whose expiry has
	// passed to expired, clearing their sessions and retaining the rows
	// for audit. Returns the number of rows expired. Idempotent: rows
	// already expired or raced to committed are untouched.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
