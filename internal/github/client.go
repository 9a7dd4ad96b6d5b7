// Package github is a minimal client for the parts of the GitHub REST API the
// dashboard reads: the authenticated user, their emails, their repositories
// and per-repository commits.
//
// Every call is authenticated with the user's OAuth access token and bounded
// by the client's timeout. There are no retries: a failed call fails the
// request that needed it.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

const perPage = 100

// APIError is returned for any non-2xx answer from GitHub.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s returned %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: %s returned %d", e.Path, e.StatusCode)
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL means DefaultBaseURL; tests
// pass an httptest server URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// HTTPClient exposes the timeout-bound client so the OAuth token exchange
// can share it.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// get issues an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("github: building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("github api call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}
		var body struct {
			Message string `json:"message"`
		}
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
			if json.Unmarshal(raw, &body) == nil {
				apiErr.Message = body.Message
			}
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decoding %s: %w", path, err)
	}
	return nil
}

// IsUnauthorized reports whether err is GitHub rejecting the token, which
// happens when the user revoked the OAuth grant.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func pageQuery(extra map[string]string) url.Values {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	for k, v := range extra {
		q.Set(k, v)
	}
	return q
}
