package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"google.golang.org/genai"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/generation"
)

// Client wraps a Gemini API connection plus the retry and accounting
// behavior shared by every generator in this package.
type Client struct {
	logger *slog.Logger
	config config.AIConfig
	client *genai.Client
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.AIConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Client{
		logger: logger.With("component", "gemini"),
		config: cfg,
		client: client,
	}, nil
}

// callWithRetry invokes the named model with exponential backoff and
// jitter on transient errors. Permanent failures (safety blocks, empty
// responses) return immediately.
func (c *Client) callWithRetry(
	ctx context.Context,
	modelName string,
	content *genai.Content,
) (*genai.GenerateContentResponse, error) {
	maxRetries := c.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := c.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		c.logger.InfoContext(ctx, "calling Gemini API",
			"model", modelName,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		resp, err := c.client.Models.GenerateContent(ctx, modelName, []*genai.Content{content}, nil)

		transient := false
		switch {
		case err != nil:
			// API-level failures are assumed transient unless retries run out.
			transient = true
		case resp == nil:
			err = fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
		case len(resp.Candidates) == 0:
			err = fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
		case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
			err = fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
		case resp.Candidates[0].Content == nil:
			err = fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
		default:
			return resp, nil
		}

		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"model", modelName,
			"attempt", attempt+1,
			"error", err)

		if !transient {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoff := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

// responseBlob returns the first inline binary part of the first
// candidate, or nil when the response carries no binary data.
func responseBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// Per-million-token prices in USD. Rates differ per model family; these
// cover the models this service is configured with.
const (
	textInputPricePerM   = 0.10
	textOutputPricePerM  = 0.40
	mediaOutputPricePerM = 10.00
)

// usageFrom converts response token metadata into a Usage record.
// mediaOutput selects the image/audio output rate instead of the text one.
func usageFrom(resp *genai.GenerateContentResponse, mediaOutput bool) generation.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return generation.Usage{}
	}

	in := int(resp.UsageMetadata.PromptTokenCount)
	out := int(resp.UsageMetadata.CandidatesTokenCount)

	outRate := textOutputPricePerM
	if mediaOutput {
		outRate = mediaOutputPricePerM
	}

	return generation.Usage{
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      float64(in)/1e6*textInputPricePerM + float64(out)/1e6*outRate,
	}
}
