package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// ArtifactStore defines the interface the generation pipelines use to
// load artifacts and their pages and to persist generated story text.
type ArtifactStore interface {
	// GetByID retrieves an artifact by its ID.
	// Returns ErrArtifactNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)

	// GetPage retrieves a single artifact page by its ID.
	// Returns ErrArtifactPageNotFound if it does not exist.
	GetPage(ctx context.Context, pageID uuid.UUID) (*domain.ArtifactPage, error)

	// ListPages returns all pages of an artifact ordered by page number.
	ListPages(ctx context.Context, artifactID uuid.UUID) ([]*domain.ArtifactPage, error)

	// SetGeneratedText persists generated story text onto the artifact.
	// Cost and tokens accumulate across retries.
	// Returns ErrArtifactNotFound if it does not exist.
	SetGeneratedText(ctx context.Context, id uuid.UUID, text string, tokens int, costUSD float64) error
}

// AccountStore exposes the minimal account read side this slice needs:
// the hourly suggestion fan-out enqueues one job per active account.
type AccountStore interface {
	// ListActiveIDs returns the IDs of all active accounts.
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// RecentArtifactTitles returns up to limit titles of the account's
	// most recently created artifacts, newest first. Untitled artifacts
	// are skipped.
	RecentArtifactTitles(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error)
}
