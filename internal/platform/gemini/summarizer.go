package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/generation"
)

// digestSchema is the JSON shape the summarizer prompt asks the model for.
type digestSchema struct {
	Summary string                      `json:"summary"`
	Topics  []generation.ExtractedTopic `json:"topics"`
}

// suggestionSchema is the JSON shape the suggestion prompt asks for.
type suggestionSchema struct {
	Suggestions []generation.Suggestion `json:"suggestions"`
}

// Summarizer implements generation.TopicSummarizer and
// generation.SuggestionGenerator with the text model.
type Summarizer struct {
	client *Client
}

// NewSummarizer returns a summarizer over the shared client.
func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

// SummarizePosts condenses a window of posts into a digest. Post indices
// in the result refer to positions in the given slice.
func (s *Summarizer) SummarizePosts(ctx context.Context, topic string, posts []string) (*generation.DigestResult, error) {
	if topic == "" || len(posts) == 0 {
		return nil, fmt.Errorf("%w: topic and posts", generation.ErrEmptyInput)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Summarize the discussion below about %q and extract the trending themes.

Respond with only JSON in this shape:
{"summary": "...", "topics": [{"topic": "...", "context": "...", "post_indices": [0, 3]}]}

post_indices are the zero-based positions of the posts that support each theme.

Posts:
`, topic)
	for i, post := range posts {
		fmt.Fprintf(&b, "[%d] %s\n", i, post)
	}

	resp, err := s.client.callWithRetry(ctx, s.client.config.ModelName, &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(b.String())},
	})
	if err != nil {
		return nil, err
	}

	var parsed digestSchema
	if err := json.Unmarshal([]byte(extractJSON(responseText(resp))), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse digest JSON: %v", generation.ErrInvalidResponse, err)
	}
	if parsed.Summary == "" {
		return nil, fmt.Errorf("%w: digest missing summary", generation.ErrInvalidResponse)
	}

	return &generation.DigestResult{
		Summary: parsed.Summary,
		Topics:  parsed.Topics,
		Usage:   usageFrom(resp, false),
	}, nil
}

// GenerateSuggestions proposes story ideas seeded by an account's recent
// activity summary.
func (s *Summarizer) GenerateSuggestions(ctx context.Context, activitySummary string) (*generation.SuggestionResult, error) {
	prompt := `Propose five short story ideas a creator could produce next.

Respond with only JSON in this shape:
{"suggestions": [{"title": "...", "prompt": "..."}]}`
	if activitySummary != "" {
		prompt += "\n\nRecent activity to draw on:\n" + activitySummary
	}

	resp, err := s.client.callWithRetry(ctx, s.client.config.ModelName, &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	})
	if err != nil {
		return nil, err
	}

	var parsed suggestionSchema
	if err := json.Unmarshal([]byte(extractJSON(responseText(resp))), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse suggestions JSON: %v", generation.ErrInvalidResponse, err)
	}
	if len(parsed.Suggestions) == 0 {
		return nil, fmt.Errorf("%w: no suggestions in response", generation.ErrInvalidResponse)
	}

	return &generation.SuggestionResult{
		Suggestions: parsed.Suggestions,
		Usage:       usageFrom(resp, false),
	}, nil
}

// extractJSON trims markdown code fences the model sometimes wraps JSON
// in, returning the inner object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
