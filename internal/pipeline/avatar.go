package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/platform/s3store"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// analysisURLTTL bounds how long the vision model's signed reference URL
// stays valid; analysis happens immediately after signing.
const analysisURLTTL = 15 * time.Minute

// AvatarPipeline drives the two-stage actor avatar flow: analyze the
// reference image into a continuity description, then render the avatar
// conditioned on it. Each stage checkpoint lands in the actor row, so a
// retried job resumes from the last completed stage instead of paying
// for the analysis again.
type AvatarPipeline struct {
	actors   store.ActorStore
	analyzer generation.ImageAnalyzer
	avatars  generation.AvatarGenerator
	storage  Storage
}

// NewAvatarPipeline wires the avatar pipeline.
func NewAvatarPipeline(
	actors store.ActorStore,
	analyzer generation.ImageAnalyzer,
	avatars generation.AvatarGenerator,
	storage Storage,
) *AvatarPipeline {
	return &AvatarPipeline{
		actors:   actors,
		analyzer: analyzer,
		avatars:  avatars,
		storage:  storage,
	}
}

// HandleGenerateAvatar processes one generate_avatar job. Payload:
// {"actor_id": "<uuid>"}.
func (p *AvatarPipeline) HandleGenerateAvatar(ctx context.Context, job *queue.Job) error {
	actorID, err := payloadID(job, "actor_id")
	if err != nil {
		return err
	}

	actor, err := p.actors.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrActorNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	log := logger.FromContext(ctx).With("actor_id", actorID)

	if actor.ImageStatus == domain.ActorImageCompleted {
		log.Info("actor avatar already completed, skipping")
		return nil
	}

	if err := p.run(ctx, actor); err != nil {
		p.markFailed(ctx, actorID, err)
		return err
	}
	return nil
}

// run executes the pipeline from wherever the actor's checkpoint left
// off. A failed run that already produced a continuity description skips
// straight to the avatar stage.
func (p *AvatarPipeline) run(ctx context.Context, actor *domain.Actor) error {
	log := logger.FromContext(ctx).With("actor_id", actor.ID)

	continuity := actor.CharacterContinuity

	if continuity == "" {
		if err := p.transition(ctx, actor, domain.ActorImageAnalyzing); err != nil {
			return err
		}

		if actor.ImageKey == "" {
			log.Info("actor has no reference image, skipping analysis")
		} else {
			url, err := p.storage.SignedURL(ctx, actor.ImageKey, s3store.VariantThumb, analysisURLTTL)
			if err != nil {
				return fmt.Errorf("failed to sign reference image: %w", err)
			}

			analysis, err := p.analyzer.AnalyzeImage(ctx, url)
			if err != nil {
				return fmt.Errorf("image analysis failed: %w", err)
			}

			tokens := analysis.Usage.InputTokens + analysis.Usage.OutputTokens
			if err := p.actors.SetContinuity(ctx, actor.ID, analysis.Continuity, tokens, analysis.Usage.CostUSD); err != nil {
				return err
			}
			continuity = analysis.Continuity

			log.Info("reference image analyzed",
				"tokens", tokens,
				"cost_usd", analysis.Usage.CostUSD)
		}
	} else {
		log.Info("continuity already present, resuming at avatar stage")
	}

	if err := p.transition(ctx, actor, domain.ActorImageGeneratingAvatar); err != nil {
		return err
	}

	image, err := p.avatars.GenerateAvatar(ctx, avatarPrompt(actor), continuity)
	if err != nil {
		return fmt.Errorf("avatar generation failed: %w", err)
	}

	key := fmt.Sprintf("actors/%s/avatar%s", actor.ID, extensionFor(image.MIMEType))
	if err := p.storage.Upload(ctx, key, image.Data, image.MIMEType); err != nil {
		return fmt.Errorf("failed to store avatar: %w", err)
	}

	if err := p.actors.SetAvatar(ctx, actor.ID, key, image.Usage.CostUSD, time.Now().UTC()); err != nil {
		return err
	}

	if err := p.transition(ctx, actor, domain.ActorImageCompleted); err != nil {
		return err
	}

	log.Info("actor avatar completed",
		"avatar_key", key,
		"cost_usd", image.Usage.CostUSD)
	return nil
}

// transition advances the checkpoint, validating against the status
// machine first so a stale job cannot clobber newer state.
func (p *AvatarPipeline) transition(ctx context.Context, actor *domain.Actor, to domain.ActorImageStatus) error {
	if !domain.CanTransitionImageStatus(actor.ImageStatus, to) {
		return queue.Permanent(fmt.Errorf("%w: %s -> %s",
			domain.ErrInvalidImageTransition, actor.ImageStatus, to))
	}
	if err := p.actors.UpdateImageStatus(ctx, actor.ID, to, nil); err != nil {
		return err
	}
	actor.ImageStatus = to
	return nil
}

// markFailed records the failure on the actor. The continuity
// description, if any stage produced one, survives for the next attempt.
func (p *AvatarPipeline) markFailed(ctx context.Context, actorID uuid.UUID, cause error) {
	err := p.actors.UpdateImageStatus(ctx, actorID, domain.ActorImageFailed, map[string]any{
		"error":     cause.Error(),
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to record avatar failure",
			"actor_id", actorID,
			"error", err)
	}
}

func avatarPrompt(actor *domain.Actor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Character name: %s.", actor.Name)
	if actor.Description != "" {
		fmt.Fprintf(&b, " %s", actor.Description)
	}
	return b.String()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
