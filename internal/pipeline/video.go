package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/platform/s3store"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// renderURLTTL covers signed asset URLs handed to the renderer; renders
// run minutes, not hours.
const renderURLTTL = 2 * time.Hour

// RenderRequest hands the renderer everything it needs by URL.
type RenderRequest struct {
	ArtifactID uuid.UUID
	Title      string
	AudioURL   string
	ImageURLs  []string
}

// RenderedVideo is the renderer's output.
type RenderedVideo struct {
	Data     []byte
	MIMEType string
}

// VideoRenderer composes page imagery and narration audio into a video.
// The composition engine behind it is opaque to this package.
type VideoRenderer interface {
	RenderVideo(ctx context.Context, req RenderRequest) (*RenderedVideo, error)
}

// VideoPipeline renders an artifact's video once its audio exists.
type VideoPipeline struct {
	artifacts store.ArtifactStore
	media     store.MediaStore
	renderer  VideoRenderer
	storage   Storage
}

// NewVideoPipeline wires the video pipeline.
func NewVideoPipeline(
	artifacts store.ArtifactStore,
	media store.MediaStore,
	renderer VideoRenderer,
	storage Storage,
) *VideoPipeline {
	return &VideoPipeline{
		artifacts: artifacts,
		media:     media,
		renderer:  renderer,
		storage:   storage,
	}
}

// HandleRenderVideo processes one render_video job. Payload:
// {"artifact_id": "<uuid>", "audio_media_id": "<uuid>"}.
func (p *VideoPipeline) HandleRenderVideo(ctx context.Context, job *queue.Job) error {
	artifactID, err := payloadID(job, "artifact_id")
	if err != nil {
		return err
	}
	audioMediaID, err := payloadID(job, "audio_media_id")
	if err != nil {
		return err
	}

	artifact, err := p.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, store.ErrArtifactNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	audioMedia, err := p.media.GetByID(ctx, audioMediaID)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			return queue.Permanent(err)
		}
		return err
	}
	if audioMedia.AudioKey == "" {
		return queue.Permanent(fmt.Errorf("media %s carries no audio key", audioMediaID))
	}

	audioURL, err := p.storage.SignedURL(ctx, audioMedia.AudioKey, s3store.VariantOriginal, renderURLTTL)
	if err != nil {
		return fmt.Errorf("failed to sign audio: %w", err)
	}

	imageURLs, err := p.pageImageURLs(ctx, artifactID)
	if err != nil {
		return err
	}

	video, err := p.renderer.RenderVideo(ctx, RenderRequest{
		ArtifactID: artifactID,
		Title:      artifact.Title,
		AudioURL:   audioURL,
		ImageURLs:  imageURLs,
	})
	if err != nil {
		return fmt.Errorf("video render failed: %w", err)
	}

	media, err := domain.NewCommittedMedia(
		artifact.AccountID, domain.MediaTypeVideo, domain.OwnerTypeArtifact, artifactID)
	if err != nil {
		return err
	}
	if err := p.media.Create(ctx, media); err != nil {
		return err
	}

	key := fmt.Sprintf("artifacts/%s/video/%s.mp4", artifactID, media.ID)
	if err := p.storage.Upload(ctx, key, video.Data, video.MIMEType); err != nil {
		return fmt.Errorf("failed to store video: %w", err)
	}

	if err := p.media.SetContentKey(ctx, media.ID, key, map[string]any{
		"size_bytes":     len(video.Data),
		"audio_media_id": audioMediaID.String(),
	}); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("artifact video rendered",
		"artifact_id", artifactID,
		"media_id", media.ID,
		"video_key", key,
		"size_bytes", len(video.Data))
	return nil
}

// pageImageURLs signs the illustration of every page that has one,
// ordered by page number. Pages without imagery are skipped; the
// renderer handles gaps.
func (p *VideoPipeline) pageImageURLs(ctx context.Context, artifactID uuid.UUID) ([]string, error) {
	pages, err := p.artifacts.ListPages(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, page := range pages {
		if page.ImagePrompt == "" {
			continue
		}
		key := pageImageKey(artifactID, page.ID)
		url, err := p.storage.SignedURL(ctx, key, s3store.VariantOriginal, renderURLTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign page image: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}
