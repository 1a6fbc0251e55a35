// Package renderapi is the HTTP client for the video composition
// service. The service takes signed asset URLs and returns the rendered
// video bytes; everything about the composition itself stays on its
// side of the wire.
package renderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/pipeline"
)

// defaultTimeout bounds one render call when config leaves it unset.
// Renders run minutes on long artifacts.
const defaultTimeout = 5 * time.Minute

// maxErrorBody caps how much of an error response gets copied into the
// returned error.
const maxErrorBody = 512

// ErrRenderFailed indicates the composition service rejected or failed
// the render.
var ErrRenderFailed = errors.New("video render failed")

// renderRequest is the wire form of pipeline.RenderRequest.
type renderRequest struct {
	ArtifactID string   `json:"artifact_id"`
	Title      string   `json:"title"`
	AudioURL   string   `json:"audio_url"`
	ImageURLs  []string `json:"image_urls"`
}

// Client calls the render service over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a render service client.
func NewClient(logger *slog.Logger, cfg config.RenderConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("render service URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "render_client"),
	}, nil
}

// RenderVideo posts the asset URLs to the render service and returns the
// video bytes it responds with.
func (c *Client) RenderVideo(ctx context.Context, req pipeline.RenderRequest) (*pipeline.RenderedVideo, error) {
	body, err := json.Marshal(renderRequest{
		ArtifactID: req.ArtifactID.String(),
		Title:      req.Title,
		AudioURL:   req.AudioURL,
		ImageURLs:  req.ImageURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRenderFailed, resp.StatusCode, snippet)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered video: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrRenderFailed)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	c.logger.Debug("video rendered",
		"artifact_id", req.ArtifactID,
		"size_bytes", len(data),
		"duration", time.Since(start))

	return &pipeline.RenderedVideo{Data: data, MIMEType: mimeType}, nil
}
