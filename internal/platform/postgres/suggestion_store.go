package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/store"
)

// SuggestionStore implements the store.SuggestionStore interface using
// PostgreSQL. Unlike the other stores it holds *sql.DB rather than a
// DBTX, because ReplaceForAccount needs its own transaction.
type SuggestionStore struct {
	db *sql.DB
}

// NewSuggestionStore creates a new SuggestionStore.
func NewSuggestionStore(db *sql.DB) *SuggestionStore {
	return &SuggestionStore{db: db}
}

// ReplaceForAccount atomically swaps the account's suggestions for the
// given batch. The delete and inserts share one transaction so readers
// never observe a half-replaced set.
func (s *SuggestionStore) ReplaceForAccount(
	ctx context.Context,
	accountID uuid.UUID,
	suggestions []*domain.Suggestion,
) error {
	for _, suggestion := range suggestions {
		if err := suggestion.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		deleteQuery := `DELETE FROM suggestions WHERE account_id = $1`
		if _, err := tx.ExecContext(ctx, deleteQuery, accountID); err != nil {
			return fmt.Errorf("failed to clear suggestions: %w", MapError(err))
		}

		insertQuery := `
			INSERT INTO suggestions (id, account_id, title, prompt, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		for _, suggestion := range suggestions {
			_, err := tx.ExecContext(ctx, insertQuery,
				suggestion.ID,
				suggestion.AccountID,
				suggestion.Title,
				suggestion.Prompt,
				suggestion.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert suggestion: %w", MapError(err))
			}
		}
		return nil
	})
}

// ListForAccount returns the account's current suggestions, newest first.
func (s *SuggestionStore) ListForAccount(
	ctx context.Context,
	accountID uuid.UUID,
) ([]*domain.Suggestion, error) {
	query := `
		SELECT id, account_id, title, prompt, created_at
		FROM suggestions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var suggestions []*domain.Suggestion
	for rows.Next() {
		var suggestion domain.Suggestion
		err := rows.Scan(
			&suggestion.ID,
			&suggestion.AccountID,
			&suggestion.Title,
			&suggestion.Prompt,
			&suggestion.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, &suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}
	return suggestions, nil
}
