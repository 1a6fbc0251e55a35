package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActorImageStatus tracks progress of the actor avatar pipeline. The
// machine is linear (pending → analyzing → generating_avatar →
// completed); failed absorbs errors from any stage.
type ActorImageStatus string

// Possible actor image status values
const (
	ActorImagePending          ActorImageStatus = "pending"
	ActorImageAnalyzing        ActorImageStatus = "analyzing"
	ActorImageGeneratingAvatar ActorImageStatus = "generating_avatar"
	ActorImageCompleted        ActorImageStatus = "completed"
	ActorImageFailed           ActorImageStatus = "failed"
)

// Common validation errors for Actor
var (
	ErrEmptyActorID           = errors.New("actor ID cannot be empty")
	ErrEmptyActorAccountID    = errors.New("actor account ID cannot be empty")
	ErrEmptyActorName         = errors.New("actor name cannot be empty")
	ErrInvalidImageStatus     = errors.New("invalid actor image status")
	ErrInvalidImageTransition = errors.New("invalid actor image status transition")
)

// Actor is a character belonging to an account. Its avatar is produced by
// a two-stage pipeline (image analysis, then avatar generation) whose
// progress is checkpointed in ImageStatus: a crashed or failed run can be
// re-driven from the last completed stage.
type Actor struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   uuid.UUID        `json:"account_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ImageKey    string           `json:"image_key,omitempty"`
	ImageStatus ActorImageStatus `json:"image_status"`

	// CharacterContinuity is the analysis output used to keep generated
	// imagery of this actor consistent across artifacts.
	CharacterContinuity string `json:"character_continuity,omitempty"`

	AvatarImageKey string `json:"avatar_image_key,omitempty"`

	// Cumulative AI spend for this actor's image pipeline. Handlers sum
	// into these; they are never reset on retry.
	AnalysisTokens          int     `json:"analysis_tokens,omitempty"`
	AnalysisCostUSD         float64 `json:"analysis_cost_usd,omitempty"`
	AvatarGenerationCostUSD float64 `json:"avatar_generation_cost_usd,omitempty"`

	Metadata         map[string]any `json:"metadata,omitempty"`
	ImageProcessedAt *time.Time     `json:"image_processed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Validate checks the Actor fields.
func (a *Actor) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyActorID
	}
	if a.AccountID == uuid.Nil {
		return ErrEmptyActorAccountID
	}
	if a.Name == "" {
		return ErrEmptyActorName
	}
	if !isValidActorImageStatus(a.ImageStatus) {
		return ErrInvalidImageStatus
	}
	return nil
}

// CanTransitionImageStatus reports whether the image pipeline may move
// from one status to another. Failed is reachable from every non-terminal
// stage; completed only from generating_avatar. A newer job may restart
// the machine from pending or failed, which is how stale results are
// superseded.
func CanTransitionImageStatus(from, to ActorImageStatus) bool {
	if !isValidActorImageStatus(from) || !isValidActorImageStatus(to) {
		return false
	}

	switch to {
	case ActorImageFailed:
		return from != ActorImageCompleted && from != ActorImageFailed
	case ActorImageAnalyzing:
		return from == ActorImagePending || from == ActorImageFailed || from == ActorImageAnalyzing
	case ActorImageGeneratingAvatar:
		return from == ActorImageAnalyzing || from == ActorImageFailed || from == ActorImageGeneratingAvatar
	case ActorImageCompleted:
		return from == ActorImageGeneratingAvatar
	case ActorImagePending:
		return from == ActorImageFailed
	default:
		return false
	}
}

func isValidActorImageStatus(s ActorImageStatus) bool {
	switch s {
	case ActorImagePending, ActorImageAnalyzing, ActorImageGeneratingAvatar,
		ActorImageCompleted, ActorImageFailed:
		return true
	default:
		return false
	}
}
