package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// videoChainDelay gives the audio object a moment to settle in storage
// before the render job reads it.
const videoChainDelay = 5 * time.Second

// AudioPipeline synthesizes narration audio for an artifact and chains
// the video render behind it.
type AudioPipeline struct {
	artifacts store.ArtifactStore
	media     store.MediaStore
	audio     generation.AudioGenerator
	storage   Storage
	enqueuer  Enqueuer
}

// NewAudioPipeline wires the audio pipeline.
func NewAudioPipeline(
	artifacts store.ArtifactStore,
	media store.MediaStore,
	audio generation.AudioGenerator,
	storage Storage,
	enqueuer Enqueuer,
) *AudioPipeline {
	return &AudioPipeline{
		artifacts: artifacts,
		media:     media,
		audio:     audio,
		storage:   storage,
		enqueuer:  enqueuer,
	}
}

// HandleGenerateAudio processes one generate_audio job. Payload:
// {"artifact_id": "<uuid>"}.
func (p *AudioPipeline) HandleGenerateAudio(ctx context.Context, job *queue.Job) error {
	artifactID, err := payloadID(job, "artifact_id")
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

	pages, err := p.artifacts.ListPages(ctx, artifactID)
	if err != nil {
		return err
	}

	text, err := ResolveNarration(artifact, pages)
	if err != nil {
		// No text anywhere: a retry cannot write the story.
		return queue.Permanent(err)
	}

	audio, err := p.audio.GenerateAudio(ctx, generation.AudioRequest{
		Text:  text,
		Voice: artifact.Voice,
		Speed: artifact.Speed,
	})
	if err != nil {
		return fmt.Errorf("audio generation failed: %w", err)
	}

	media, err := domain.NewCommittedMedia(
		artifact.AccountID, domain.MediaTypeAudio, domain.OwnerTypeArtifact, artifactID)
	if err != nil {
		return err
	}
	if err := p.media.Create(ctx, media); err != nil {
		return err
	}

	key := fmt.Sprintf("artifacts/%s/audio/%s%s", artifactID, media.ID, audioExtensionFor(audio.MIMEType))
	if err := p.storage.Upload(ctx, key, audio.Data, audio.MIMEType); err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}

	if err := p.media.SetContentKey(ctx, media.ID, key, map[string]any{
		"size_bytes":      audio.SizeBytes,
		"character_count": audio.CharacterCount,
		"cost_usd":        audio.Usage.CostUSD,
	}); err != nil {
		return err
	}

	log := logger.FromContext(ctx).With("artifact_id", artifactID, "media_id", media.ID)
	log.Info("narration audio generated",
		"audio_key", key,
		"size_bytes", audio.SizeBytes,
		"character_count", audio.CharacterCount,
		"cost_usd", audio.Usage.CostUSD)

	// The render is best-effort from this job's point of view: the audio
	// is durable either way, and the chain can be re-triggered. A chain
	// failure must not fail (and re-run) a succeeded generation.
	_, err = p.enqueuer.Enqueue(ctx, queue.QueueVideo, JobRenderVideo, map[string]any{
		"artifact_id":    artifactID.String(),
		"audio_media_id": media.ID.String(),
	}, queue.EnqueueOptions{
		JobID: fmt.Sprintf("render:%s:%s", artifactID, media.ID),
		Delay: videoChainDelay,
	})
	if err != nil {
		log.Error("failed to chain video render", "error", err)
	}

	return nil
}

// HandleGeneratePageAudio processes one generate_page_audio job.
// Payload: {"page_id": "<uuid>"}. Per-page audio is owned by the page
// itself and never chains a video render; the whole-story path does that.
func (p *AudioPipeline) HandleGeneratePageAudio(ctx context.Context, job *queue.Job) error {
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

	text := strings.TrimSpace(strings.Join(page.Segments, " "))
	if text == "" {
		log.Info("page has no narration segments, skipping")
		return nil
	}

	artifact, err := p.artifacts.GetByID(ctx, page.ArtifactID)
	if err != nil {
		if errors.Is(err, store.ErrArtifactNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	audio, err := p.audio.GenerateAudio(ctx, generation.AudioRequest{
		Text:  text,
		Voice: artifact.Voice,
		Speed: artifact.Speed,
	})
	if err != nil {
		return fmt.Errorf("page audio generation failed: %w", err)
	}

	media, err := domain.NewCommittedMedia(
		artifact.AccountID, domain.MediaTypeAudio, domain.OwnerTypeArtifactPage, pageID)
	if err != nil {
		return err
	}
	if err := p.media.Create(ctx, media); err != nil {
		return err
	}

	key := fmt.Sprintf("artifacts/%s/pages/%s/audio/%s%s",
		page.ArtifactID, pageID, media.ID, audioExtensionFor(audio.MIMEType))
	if err := p.storage.Upload(ctx, key, audio.Data, audio.MIMEType); err != nil {
		return fmt.Errorf("failed to store page audio: %w", err)
	}

	if err := p.media.SetContentKey(ctx, media.ID, key, map[string]any{
		"page_number":     page.PageNumber,
		"size_bytes":      audio.SizeBytes,
		"character_count": audio.CharacterCount,
		"cost_usd":        audio.Usage.CostUSD,
	}); err != nil {
		return err
	}

	log.Info("page narration audio generated",
		"media_id", media.ID,
		"audio_key", key,
		"size_bytes", audio.SizeBytes,
		"cost_usd", audio.Usage.CostUSD)
	return nil
}

func audioExtensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}
