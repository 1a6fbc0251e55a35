package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// PageImagePipeline renders the illustration for one artifact page.
type PageImagePipeline struct {
	artifacts store.ArtifactStore
	media     store.MediaStore
	images    generation.ImageGenerator
	storage   Storage
}

// NewPageImagePipeline wires the page illustration pipeline.
func NewPageImagePipeline(
	artifacts store.ArtifactStore,
	media store.MediaStore,
	images generation.ImageGenerator,
	storage Storage,
) *PageImagePipeline {
	return &PageImagePipeline{
		artifacts: artifacts,
		media:     media,
		images:    images,
		storage:   storage,
	}
}

// HandleGeneratePageImage processes one generate_page_image job.
// Payload: {"page_id": "<uuid>"}.
func (p *PageImagePipeline) HandleGeneratePageImage(ctx context.Context, job *queue.Job) error {
	pageID, err := payloadID(job, "page_id")
	if err != nil {
		return err
	}

	page, err := p.artifacts.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, store.ErrArtifactPageNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	log := logger.FromContext(ctx).With("page_id", pageID, "artifact_id", page.ArtifactID)

	if page.ImagePrompt == "" {
		log.Info("page has no image prompt, skipping")
		return nil
	}

	artifact, err := p.artifacts.GetByID(ctx, page.ArtifactID)
	if err != nil {
		if errors.Is(err, store.ErrArtifactNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	image, err := p.images.GenerateImage(ctx, page.ImagePrompt)
	if err != nil {
		return fmt.Errorf("page image generation failed: %w", err)
	}

	media, err := domain.NewCommittedMedia(
		artifact.AccountID, domain.MediaTypeImage, domain.OwnerTypeArtifactPage, pageID)
	if err != nil {
		return err
	}
	if err := p.media.Create(ctx, media); err != nil {
		return err
	}

	key := pageImageKey(page.ArtifactID, pageID)
	if err := p.storage.Upload(ctx, key, image.Data, image.MIMEType); err != nil {
		return fmt.Errorf("failed to store page image: %w", err)
	}

	if err := p.media.SetContentKey(ctx, media.ID, key, map[string]any{
		"cost_usd":    image.Usage.CostUSD,
		"page_number": page.PageNumber,
	}); err != nil {
		return err
	}

	log.Info("page image generated",
		"media_id", media.ID,
		"image_key", key,
		"cost_usd", image.Usage.CostUSD)
	return nil
}

// pageImageKey is the deterministic storage key of a page's
// illustration; the video render signs it without a media lookup.
func pageImageKey(artifactID, pageID uuid.UUID) string {
	return fmt.Sprintf("artifacts/%s/pages/%s/image.png", artifactID, pageID)
}
