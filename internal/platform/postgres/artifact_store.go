package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/store"
)

// ArtifactStore implements the store.ArtifactStore and store.AccountStore
// read-side interfaces using PostgreSQL.
type ArtifactStore struct {
	db store.DBTX
}

// NewArtifactStore creates a new ArtifactStore.
func NewArtifactStore(db store.DBTX) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// GetByID retrieves an artifact by its ID.
func (s *ArtifactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `
		SELECT id, account_id, input_id, kind, title, text, voice, speed,
		       created_at, updated_at
		FROM artifacts
		WHERE id = $1
	`

	var (
		artifact domain.Artifact
		title    sql.NullString
		text     sql.NullString
		voice    sql.NullString
		speed    sql.NullFloat64
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&artifact.ID,
		&artifact.AccountID,
		&artifact.InputID,
		&artifact.Kind,
		&title,
		&text,
		&voice,
		&speed,
		&artifact.CreatedAt,
		&artifact.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", MapError(err))
	}

	artifact.Title = title.String
	artifact.Text = text.String
	artifact.Voice = voice.String
	artifact.Speed = speed.Float64

	return &artifact, nil
}

// GetPage retrieves a single artifact page by its ID.
func (s *ArtifactStore) GetPage(ctx context.Context, pageID uuid.UUID) (*domain.ArtifactPage, error) {
	query := `
		SELECT id, artifact_id, page_number, segments, image_prompt, created_at, updated_at
		FROM artifact_pages
		WHERE id = $1
	`

	page, err := scanArtifactPage(s.db.QueryRowContext(ctx, query, pageID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrArtifactPageNotFound
		}
		return nil, fmt.Errorf("failed to get artifact page: %w", MapError(err))
	}

	return page, nil
}

// ListPages returns all pages of an artifact ordered by page number.
func (s *ArtifactStore) ListPages(ctx context.Context, artifactID uuid.UUID) ([]*domain.ArtifactPage, error) {
	query := `
		SELECT id, artifact_id, page_number, segments, image_prompt, created_at, updated_at
		FROM artifact_pages
		WHERE artifact_id = $1
		ORDER BY page_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact pages: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var pages []*domain.ArtifactPage
	for rows.Next() {
		page, err := scanArtifactPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact page row: %w", err)
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact page rows: %w", err)
	}

	return pages, nil
}

// SetGeneratedText persists generated story text. Cost and tokens are
// accumulated, not overwritten: retried generations still spent real money.
func (s *ArtifactStore) SetGeneratedText(
	ctx context.Context,
	id uuid.UUID,
	text string,
	tokens int,
	costUSD float64,
) error {
	query := `
		UPDATE artifacts
		SET text = $1,
		    generation_tokens = generation_tokens + $2,
		    generation_cost_usd = generation_cost_usd + $3,
		    updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query, text, tokens, costUSD, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set artifact text: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrArtifactNotFound
	}

	return nil
}

// ListActiveIDs returns the IDs of all active accounts.
func (s *ArtifactStore) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM accounts
		WHERE is_active = TRUE
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return ids, nil
}

// RecentArtifactTitles returns up to limit titles of the account's most
// recently created artifacts, newest first.
func (s *ArtifactStore) RecentArtifactTitles(
	ctx context.Context,
	accountID uuid.UUID,
	limit int,
) ([]string, error) {
	query := `
		SELECT title
		FROM artifacts
		WHERE account_id = $1 AND title IS NOT NULL AND title <> ''
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent artifact titles: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan artifact title: %w", err)
		}
		titles = append(titles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifact title rows: %w", err)
	}

	return titles, nil
}

func scanArtifactPage(row rowScanner) (*domain.ArtifactPage, error) {
	var (
		page        domain.ArtifactPage
		segments    []byte
		imagePrompt sql.NullString
	)

	err := row.Scan(
		&page.ID,
		&page.ArtifactID,
		&page.PageNumber,
		&segments,
		&imagePrompt,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &page.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page segments: %w", err)
		}
	}
	page.ImagePrompt = imagePrompt.String

	return &page, nil
}
