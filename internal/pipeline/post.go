package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
)

// PostPipeline writes the story text for an artifact. The generated text
// is what the narration pipeline later reads when an artifact carries no
// per-page segments.
type PostPipeline struct {
	artifacts store.ArtifactStore
	writer    generation.PostGenerator
}

// NewPostPipeline wires the story text pipeline.
func NewPostPipeline(artifacts store.ArtifactStore, writer generation.PostGenerator) *PostPipeline {
	return &PostPipeline{
		artifacts: artifacts,
		writer:    writer,
	}
}

// HandleGeneratePost processes one generate_post job.
// Payload: {"artifact_id": "<uuid>", "prompt": "..."}.
func (p *PostPipeline) HandleGeneratePost(ctx context.Context, job *queue.Job) error {
	artifactID, err := payloadID(job, "artifact_id")
	if err != nil {
		return err
	}
	prompt, err := payloadString(job, "prompt")
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

	log := logger.FromContext(ctx).With("artifact_id", artifactID)

	if artifact.Text != "" {
		log.Info("artifact already has story text, skipping")
		return nil
	}

	result, err := p.writer.GeneratePost(ctx, prompt, generation.PostOptions{})
	if err != nil {
		return fmt.Errorf("post generation failed: %w", err)
	}

	tokens := result.Usage.InputTokens + result.Usage.OutputTokens
	if err := p.artifacts.SetGeneratedText(ctx, artifactID, result.Content, tokens, result.Usage.CostUSD); err != nil {
		return err
	}

	log.Info("story text generated",
		"model", result.Model,
		"length", len(result.Content),
		"tokens", tokens,
		"cost_usd", result.Usage.CostUSD)
	return nil
}
