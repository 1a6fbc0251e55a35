package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind distinguishes the produced content unit.
type ArtifactKind string

// Possible artifact kinds
const (
	ArtifactKindStory ArtifactKind = "story"
	ArtifactKindPost  ArtifactKind = "post"
)

// Common validation errors for Artifact
var (
	ErrEmptyArtifactID        = errors.New("artifact ID cannot be empty")
	ErrEmptyArtifactAccountID = errors.New("artifact account ID cannot be empty")
)

// Artifact is a generated content unit produced from an Input. Narration
// text historically lived in one of two shapes: structured per-page
// Segments, or the flat Text field on the artifact itself. The pipeline
// package resolves between them; domain types just carry both.
type Artifact struct {
	ID        uuid.UUID    `json:"id"`
	AccountID uuid.UUID    `json:"account_id"`
	InputID   uuid.UUID    `json:"input_id"`
	Kind      ArtifactKind `json:"kind"`
	Title     string       `json:"title,omitempty"`

	// Text is the legacy flat narration field, populated on older rows
	// that predate per-page segments.
	Text string `json:"text,omitempty"`

	// Audio preferences used by the audio generation pipeline.
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the Artifact fields.
func (a *Artifact) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyArtifactID
	}
	if a.AccountID == uuid.Nil {
		return ErrEmptyArtifactAccountID
	}
	return nil
}

// ArtifactPage is one page of a story artifact.
type ArtifactPage struct {
	ID         uuid.UUID `json:"id"`
	ArtifactID uuid.UUID `json:"artifact_id"`
	PageNumber int       `json:"page_number"`

	// Segments is the structured narration shape: ordered text segments
	// for this page. Preferred over the artifact-level flat text.
	Segments []string `json:"segments,omitempty"`

	// ImagePrompt drives the per-page illustration pipeline.
	ImagePrompt string `json:"image_prompt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
