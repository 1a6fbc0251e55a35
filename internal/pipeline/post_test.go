package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom-api/internal/domain"
	"github.com/storyloom/storyloom-api/internal/generation"
	"github.com/storyloom/storyloom-api/internal/queue"
)

type fakePostGenerator struct {
	prompts []string
	result  *generation.PostResult
	err     error
}

func (g *fakePostGenerator) GeneratePost(
	ctx context.Context, prompt string, opts generation.PostOptions,
) (*generation.PostResult, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func TestPostPipelineWritesStoryText(t *testing.T) {
	artifacts := newFakeArtifactStore()
	artifact := &domain.Artifact{ID: uuid.New(), AccountID: uuid.New()}
	artifacts.artifacts[artifact.ID] = artifact

	writer := &fakePostGenerator{result: &generation.PostResult{
		Content: "Once upon a tide, a lighthouse keeper found a map.",
		Model:   "gemini-2.0-flash",
		Usage:   generation.Usage{InputTokens: 40, OutputTokens: 160, CostUSD: 0.02},
	}}

	p := NewPostPipeline(artifacts, writer)
	job := testJob(JobGeneratePost, map[string]any{
		"artifact_id": artifact.ID.String(),
		"prompt":      "A lighthouse keeper finds a map.",
	})

	require.NoError(t, p.HandleGeneratePost(context.Background(), job))

	require.Len(t, writer.prompts, 1)
	assert.Equal(t, "A lighthouse keeper finds a map.", writer.prompts[0])
	assert.Equal(t, "Once upon a tide, a lighthouse keeper found a map.", artifact.Text)
	assert.Equal(t, 200, artifacts.textTokens)
	assert.InDelta(t, 0.02, artifacts.textCost, 1e-9)
}

func TestPostPipelineSkipsArtifactsWithText(t *testing.T) {
	artifacts := newFakeArtifactStore()
	artifact := &domain.Artifact{ID: uuid.New(), AccountID: uuid.New(), Text: "already written"}
	artifacts.artifacts[artifact.ID] = artifact

	writer := &fakePostGenerator{}
	p := NewPostPipeline(artifacts, writer)
	job := testJob(JobGeneratePost, map[string]any{
		"artifact_id": artifact.ID.String(),
		"prompt":      "A new take.",
	})

	require.NoError(t, p.HandleGeneratePost(context.Background(), job))
	assert.Empty(t, writer.prompts)
	assert.Equal(t, "already written", artifact.Text)
}

func TestPostPipelineMissingArtifactIsPermanent(t *testing.T) {
	p := NewPostPipeline(newFakeArtifactStore(), &fakePostGenerator{})
	job := testJob(JobGeneratePost, map[string]any{
		"artifact_id": uuid.New().String(),
		"prompt":      "A story.",
	})

	err := p.HandleGeneratePost(context.Background(), job)
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestPostPipelineBadPayloadIsPermanent(t *testing.T) {
	artifacts := newFakeArtifactStore()
	artifact := &domain.Artifact{ID: uuid.New(), AccountID: uuid.New()}
	artifacts.artifacts[artifact.ID] = artifact

	p := NewPostPipeline(artifacts, &fakePostGenerator{})

	for name, payload := range map[string]map[string]any{
		"missing prompt": {"artifact_id": artifact.ID.String()},
		"empty prompt":   {"artifact_id": artifact.ID.String(), "prompt": ""},
		"bad id":         {"artifact_id": "not-a-uuid", "prompt": "A story."},
	} {
		err := p.HandleGeneratePost(context.Background(), testJob(JobGeneratePost, payload))
		require.Error(t, err, name)
		assert.True(t, queue.IsPermanent(err), name)
	}
}

func TestPostPipelineGenerationFailureRetries(t *testing.T) {
	artifacts := newFakeArtifactStore()
	artifact := &domain.Artifact{ID: uuid.New(), AccountID: uuid.New()}
	artifacts.artifacts[artifact.ID] = artifact

	writer := &fakePostGenerator{err: errors.New("model overloaded")}
	p := NewPostPipeline(artifacts, writer)
	job := testJob(JobGeneratePost, map[string]any{
		"artifact_id": artifact.ID.String(),
		"prompt":      "A story.",
	})

	err := p.HandleGeneratePost(context.Background(), job)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.Empty(t, artifact.Text)
}
