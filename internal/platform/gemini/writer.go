package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/generation"
)

// Writer implements generation.PostGenerator with the text model.
type Writer struct {
	client *Client
}

// NewWriter returns a story writer over the shared client.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// GeneratePost writes story text from a prompt.
func (w *Writer) GeneratePost(
	ctx context.Context,
	prompt string,
	opts generation.PostOptions,
) (*generation.PostResult, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: post prompt", generation.ErrEmptyInput)
	}

	full := "Write the story below as engaging narrative prose. Respond with only the story text.\n\n" + prompt
	if opts.MaxLength > 0 {
		full += fmt.Sprintf("\n\nKeep the story under %d characters.", opts.MaxLength)
	}

	resp, err := w.client.callWithRetry(ctx, w.client.config.ModelName, &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(full)},
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return nil, fmt.Errorf("%w: response carries no text", generation.ErrInvalidResponse)
	}

	return &generation.PostResult{
		Content: text,
		Model:   w.client.config.ModelName,
		Usage:   usageFrom(resp, false),
	}, nil
}
