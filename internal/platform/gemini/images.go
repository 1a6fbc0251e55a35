package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/generation"
)

// ImageRenderer implements generation.AvatarGenerator and
// generation.ImageGenerator with the image model.
type ImageRenderer struct {
	client *Client
}

// NewImageRenderer returns an image renderer over the shared client.
func NewImageRenderer(client *Client) *ImageRenderer {
	return &ImageRenderer{client: client}
}

// GenerateAvatar renders a character portrait. A non-empty continuity
// description pins the character's appearance across renders.
func (r *ImageRenderer) GenerateAvatar(ctx context.Context, prompt, continuity string) (*generation.GeneratedImage, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: avatar prompt", generation.ErrEmptyInput)
	}

	full := "Render a character portrait. " + prompt
	if continuity != "" {
		full += "\n\nKeep the character consistent with this continuity description:\n" + continuity
	}

	return r.render(ctx, full)
}

// GenerateImage renders a standalone illustration from a prompt.
func (r *ImageRenderer) GenerateImage(ctx context.Context, prompt string) (*generation.GeneratedImage, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: image prompt", generation.ErrEmptyInput)
	}
	return r.render(ctx, "Render an illustration. "+prompt)
}

func (r *ImageRenderer) render(ctx context.Context, prompt string) (*generation.GeneratedImage, error) {
	content := &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}

	resp, err := r.client.callWithRetry(ctx, r.client.config.ModelName, content)
	if err != nil {
		return nil, err
	}

	blob := responseBlob(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: response carries no image data", generation.ErrInvalidResponse)
	}

	mime := blob.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	return &generation.GeneratedImage{
		Data:     blob.Data,
		MIMEType: mime,
		Usage:    usageFrom(resp, true),
	}, nil
}
