package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/generation"
)

// Narrator implements generation.AudioGenerator with the TTS model.
type Narrator struct {
	client *Client
}

// NewNarrator returns a narration synthesizer over the shared client.
func NewNarrator(client *Client) *Narrator {
	return &Narrator{client: client}
}

// GenerateAudio synthesizes narration for the given text.
func (n *Narrator) GenerateAudio(ctx context.Context, req generation.AudioRequest) (*generation.GeneratedAudio, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: narration text", generation.ErrEmptyInput)
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	instruction := fmt.Sprintf("Narrate the following text aloud. Voice: %s. Speed: %.2fx.\n\n%s",
		req.Voice, speed, req.Text)

	content := &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(instruction)},
	}

	resp, err := n.client.callWithRetry(ctx, n.client.config.AudioModel, content)
	if err != nil {
		return nil, err
	}

	blob := responseBlob(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: response carries no audio data", generation.ErrInvalidResponse)
	}

	mime := blob.MIMEType
	if mime == "" {
		mime = "audio/mpeg"
	}

	return &generation.GeneratedAudio{
		Data:           blob.Data,
		MIMEType:       mime,
		SizeBytes:      int64(len(blob.Data)),
		CharacterCount: len(req.Text),
		Usage:          usageFrom(resp, true),
	}, nil
}
