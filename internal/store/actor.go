package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// ActorStore defines the interface for persisting actors and advancing
// their image pipeline state machine.
type ActorStore interface {
	// GetByID retrieves an actor by its ID.
	// Returns ErrActorNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error)

	// UpdateImageStatus sets the actor's image pipeline status and
	// merges the given entries into its metadata. Metadata merging is
	// additive; existing keys not present in the argument survive.
	UpdateImageStatus(
		ctx context.Context,
		id uuid.UUID,
		status domain.ActorImageStatus,
		metadata map[string]any,
	) error

	// SetContinuity persists the analysis stage output: the character
	// continuity description plus token usage and cost.
	SetContinuity(ctx context.Context, id uuid.UUID, continuity string, tokens int, costUSD float64) error

	// SetAvatar persists the avatar stage output and stamps the
	// processing completion time.
	SetAvatar(ctx context.Context, id uuid.UUID, imageKey string, costUSD float64, processedAt time.Time) error
}
