package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MediaStatus represents the lifecycle state of a stored media blob.
type MediaStatus string

// Possible media status values
const (
	MediaStatusPending   MediaStatus = "pending"
	MediaStatusCommitted MediaStatus = "committed"
	MediaStatusExpired   MediaStatus = "expired"
)

// MediaType identifies the kind of binary asset a Media row points at.
type MediaType string

// Possible media types
const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// OwnerType identifies which entity a committed media blob belongs to.
type OwnerType string

// Possible owner types
const (
	OwnerTypeInput        OwnerType = "input"
	OwnerTypeAccount      OwnerType = "account"
	OwnerTypeArtifact     OwnerType = "artifact"
	OwnerTypeArtifactPage OwnerType = "artifact_page"
)

// PendingMediaTTL is how long an upload session stays claimable before
// the sweeper expires it.
const PendingMediaTTL = 24 * time.Hour

// Common validation errors for Media
var (
	ErrEmptyMediaID            = errors.New("media ID cannot be empty")
	ErrEmptyMediaAccountID     = errors.New("media account ID cannot be empty")
	ErrInvalidMediaStatus      = errors.New("invalid media status")
	ErrInvalidMediaType        = errors.New("invalid media type")
	ErrInvalidOwnerType        = errors.New("invalid media owner type")
	ErrPendingMissingSession   = errors.New("pending media must have an upload session and expiry")
	ErrCommittedCarriesSession = errors.New("committed or expired media cannot carry an upload session")
	ErrCommittedMissingOwner   = errors.New("committed media must have an owner")
)

// Media represents a stored binary asset (image, audio, or video) with an
// owner and a lifecycle status.
//
// Invariant: a pending record has both UploadSessionID and ExpiresAt set;
// once the record leaves pending, both are cleared (or, for expired rows,
// the session is cleared and the row is retained for audit).
type Media struct {
	ID              uuid.UUID      `json:"id"`
	AccountID       uuid.UUID      `json:"account_id"`
	OwnerType       OwnerType      `json:"owner_type,omitempty"`
	OwnerID         uuid.UUID      `json:"owner_id,omitempty"`
	MediaType       MediaType      `json:"media_type"`
	Status          MediaStatus    `json:"status"`
	UploadSessionID *uuid.UUID     `json:"upload_session_id,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	ImageKey        string         `json:"image_key,omitempty"`
	AudioKey        string         `json:"audio_key,omitempty"`
	VideoKey        string         `json:"video_key,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewPendingMedia creates a Media row for a freshly opened upload
// session. The row carries the session ID and a 24h expiry; it has no
// owner until a commit binds one.
func NewPendingMedia(accountID uuid.UUID, mediaType MediaType, sessionID uuid.UUID) (*Media, error) {
	now := time.Now().UTC()
	expires := now.Add(PendingMediaTTL)
	media := &Media{
		ID:              uuid.New(),
		AccountID:       accountID,
		MediaType:       mediaType,
		Status:          MediaStatusPending,
		UploadSessionID: &sessionID,
		ExpiresAt:       &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := media.Validate(); err != nil {
		return nil, err
	}

	return media, nil
}

// NewCommittedMedia creates a Media row directly in the committed state.
// Pipelines use this when they generate an asset for a known owner; no
// upload session is involved.
func NewCommittedMedia(
	accountID uuid.UUID,
	mediaType MediaType,
	ownerType OwnerType,
	ownerID uuid.UUID,
) (*Media, error) {
	now := time.Now().UTC()
	media := &Media{
		ID:        uuid.New(),
		AccountID: accountID,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		MediaType: mediaType,
		Status:    MediaStatusCommitted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := media.Validate(); err != nil {
		return nil, err
	}

	return media, nil
}

// Validate checks the Media fields and enforces the session/status
// invariant. Returns an error if any check fails.
func (m *Media) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMediaID
	}

	if m.AccountID == uuid.Nil {
		return ErrEmptyMediaAccountID
	}

	if !isValidMediaType(m.MediaType) {
		return ErrInvalidMediaType
	}

	switch m.Status {
	case MediaStatusPending:
		if m.UploadSessionID == nil || m.ExpiresAt == nil {
			return ErrPendingMissingSession
		}
	case MediaStatusCommitted:
		if m.UploadSessionID != nil {
			return ErrCommittedCarriesSession
		}
		if m.OwnerType == "" || m.OwnerID == uuid.Nil {
			return ErrCommittedMissingOwner
		}
		if !isValidOwnerType(m.OwnerType) {
			return ErrInvalidOwnerType
		}
	case MediaStatusExpired:
		if m.UploadSessionID != nil {
			return ErrCommittedCarriesSession
		}
	default:
		return ErrInvalidMediaStatus
	}

	return nil
}

// Commit transitions the media from pending to committed, binding the
// owner and clearing the session and expiry. It only mutates the
// in-memory representation; the authoritative race-safe transition is the
// store's conditional update.
func (m *Media) Commit(ownerType OwnerType, ownerID uuid.UUID) error {
	if m.Status != MediaStatusPending {
		return ErrInvalidMediaStatus
	}
	if !isValidOwnerType(ownerType) {
		return ErrInvalidOwnerType
	}
	if ownerID == uuid.Nil {
		return ErrCommittedMissingOwner
	}

	m.Status = MediaStatusCommitted
	m.OwnerType = ownerType
	m.OwnerID = ownerID
	m.UploadSessionID = nil
	m.ExpiresAt = nil
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func isValidMediaType(t MediaType) bool {
	switch t {
	case MediaTypeImage, MediaTypeAudio, MediaTypeVideo:
		return true
	default:
		return false
	}
}

func isValidOwnerType(t OwnerType) bool {
	switch t {
	case OwnerTypeInput, OwnerTypeAccount, OwnerTypeArtifact, OwnerTypeArtifactPage:
		return true
	default:
		return false
	}
}
