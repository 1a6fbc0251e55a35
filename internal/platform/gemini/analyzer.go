package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/generation"
)

const continuityPrompt = `Study the character in this reference image and write a continuity description for an illustrator: physical build, face, hair, skin tone, clothing, colors, and any distinctive marks. Write plain prose, no lists, under 150 words.`

// Analyzer implements generation.ImageAnalyzer with the vision model.
type Analyzer struct {
	client *Client
}

// NewAnalyzer returns a vision analyzer over the shared client.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

// AnalyzeImage extracts a continuity description from the image at the
// given URL. Callers pass a downscaled signed URL; full-resolution
// uploads waste vision tokens without improving the description.
func (a *Analyzer) AnalyzeImage(ctx context.Context, imageURL string) (*generation.ImageAnalysis, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("%w: image URL", generation.ErrEmptyInput)
	}

	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromURI(imageURL, "image/jpeg"),
			genai.NewPartFromText(continuityPrompt),
		},
	}

	resp, err := a.client.callWithRetry(ctx, a.client.config.VisionModel, content)
	if err != nil {
		return nil, err
	}

	continuity := strings.TrimSpace(responseText(resp))
	if continuity == "" {
		return nil, fmt.Errorf("%w: empty continuity description", generation.ErrInvalidResponse)
	}

	return &generation.ImageAnalysis{
		Continuity: continuity,
		Usage:      usageFrom(resp, false),
	}, nil
}
