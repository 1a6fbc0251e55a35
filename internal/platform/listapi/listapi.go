// Package listapi is the HTTP client for the external list API the
// topic sync reads posts from.
package listapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/domain"
)

// defaultTimeout bounds one list fetch when config leaves it unset.
const defaultTimeout = 30 * time.Second

// pageSize is the per-request result cap the API allows.
const pageSize = 100

// ErrListFetchFailed indicates the list API rejected or failed the read.
var ErrListFetchFailed = errors.New("list fetch failed")

// ErrRateLimited indicates the API's request budget is exhausted. The
// caller's retry backoff handles it; the dispatch stagger exists to make
// it rare.
var ErrRateLimited = errors.New("list API rate limited")

// Client reads list posts over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a list API client.
func NewClient(logger *slog.Logger, cfg config.ListAPIConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("list API base URL is required")
	}
	if cfg.BearerToken == "" {
		return nil, errors.New("list API bearer token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.BearerToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "list_client"),
	}, nil
}

type listResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		AuthorID      string    `json:"author_id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int64 `json:"like_count"`
			RetweetCount int64 `json:"retweet_count"`
			ReplyCount   int64 `json:"reply_count"`
			QuoteCount   int64 `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// FetchPosts returns the list's posts created after since, newest page
// only. The API has no server-side time filter on list reads, so the
// cutoff is applied here.
func (c *Client) FetchPosts(ctx context.Context, listID string, since time.Time) ([]domain.TopicPost, error) {
	endpoint := fmt.Sprintf("%s/lists/%s/tweets", c.baseURL, url.PathEscape(listID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	query := req.URL.Query()
	query.Set("max_results", fmt.Sprintf("%d", pageSize))
	query.Set("tweet.fields", "created_at,author_id,public_metrics")
	query.Set("expansions", "author_id")
	query.Set("user.fields", "username")
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: list %s", ErrRateLimited, listID)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrListFetchFailed, resp.StatusCode, snippet)
	}

	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	handles := make(map[string]string, len(parsed.Includes.Users))
	for _, user := range parsed.Includes.Users {
		handles[user.ID] = user.Username
	}

	var posts []domain.TopicPost
	for _, item := range parsed.Data {
		if !item.CreatedAt.After(since) {
			continue
		}
		metrics := item.PublicMetrics
		posts = append(posts, domain.TopicPost{
			ID:           item.ID,
			AuthorHandle: handles[item.AuthorID],
			Text:         item.Text,
			Engagement:   metrics.LikeCount + metrics.RetweetCount + metrics.ReplyCount + metrics.QuoteCount,
			PostedAt:     item.CreatedAt,
		})
	}

	c.logger.Debug("list fetched",
		"list_id", listID,
		"returned", len(parsed.Data),
		"kept", len(posts))
	return posts, nil
}
