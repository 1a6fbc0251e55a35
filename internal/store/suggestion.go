package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
)

// SuggestionStore persists generated story suggestions.
type SuggestionStore interface {
	// ReplaceForAccount atomically swaps the account's suggestions for
	// the given batch. An empty batch clears them.
	ReplaceForAccount(ctx context.Context, accountID uuid.UUID, suggestions []*domain.Suggestion) error

	// ListForAccount returns the account's current suggestions, newest
	// first.
	ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Suggestion, error)
}
