// Package client implements the timeline data source over a Mastodon-style
// paginated JSON API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/feedcomb/app/scheduler"
	"github.com/lysyi3m/feedcomb/app/timeline"
)

var _ timeline.Source = (*Client)(nil)

type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

func New(baseURL, token, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// endpointForFeed maps a feed identity to its API path. Identities follow the
// kind[:parameter] shape produced by the feed configuration: "home",
// "public", "tag:golang", "account:123".
func endpointForFeed(feed string) (string, error) {
	kind, param, _ := strings.Cut(feed, ":")
	switch kind {
	case "home":
		return "/api/v1/timelines/home", nil
	case "public":
		return "/api/v1/timelines/public", nil
	case "tag":
		if param == "" {
			return "", fmt.Errorf("tag feed requires a hashtag")
		}
		return "/api/v1/timelines/tag/" + url.PathEscape(param), nil
	case "account":
		if param == "" {
			return "", fmt.Errorf("account feed requires an account id")
		}
		return "/api/v1/accounts/" + url.PathEscape(param) + "/statuses", nil
	default:
		return "", fmt.Errorf("unknown feed kind %q", kind)
	}
}

func (c *Client) FetchPage(ctx context.Context, feed string, params timeline.CursorParams) ([]timeline.Post, error) {
	path, err := endpointForFeed(feed)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.MaxID != "" {
		query.Set("max_id", params.MaxID)
	}
	if params.MinID != "" {
		query.Set("min_id", params.MinID)
	}
	if params.SinceID != "" {
		query.Set("since_id", params.SinceID)
	}

	var posts []timeline.Post
	if err := c.get(ctx, path, query, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) FetchItem(ctx context.Context, id string) (*timeline.Post, error) {
	var post timeline.Post
	if err := c.get(ctx, "/api/v1/statuses/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) FetchContext(ctx context.Context, id string) (*timeline.Context, error) {
	var pctx timeline.Context
	payload := struct {
		Ancestors   *[]timeline.Post `json:"ancestors"`
		Descendants *[]timeline.Post `json:"descendants"`
	}{&pctx.Ancestors, &pctx.Descendants}

	if err := c.get(ctx, "/api/v1/statuses/"+url.PathEscape(id)+"/context", nil, &payload); err != nil {
		return nil, err
	}
	return &pctx, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &scheduler.RequestError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("GET %s", path),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}

// parseRetryAfter handles the delay-seconds form of the header. The HTTP-date
// form is rare on rate limiters and falls back to the scheduler's default
// cooldown.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
