// Package rsstl adapts an RSS or Atom feed into a paginated timeline
// source. The remote feed has no cursor support, so pagination is served
// from a periodically refreshed snapshot of the parsed feed.
package rsstl

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	readability "codeberg.org/readeck/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

const defaultSnapshotTTL = 60 * time.Second

// contextSideLimit caps how many neighbors FetchContext returns per side.
const contextSideLimit = 20

type Config struct {
	URL            string
	UserAgent      string
	Timeout        time.Duration
	SnapshotTTL    time.Duration
	ExtractContent bool
}

type Source struct {
	cfg          Config
	httpClient   *http.Client
	gofeedParser *gofeed.Parser

	mu        sync.Mutex
	snapshot  []timeline.Post
	fetchedAt time.Time
}

func New(cfg Config) *Source {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = defaultSnapshotTTL
	}

	return &Source{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		gofeedParser: gofeed.NewParser(),
	}
}

func (s *Source) FetchPage(ctx context.Context, feed string, params timeline.CursorParams) ([]timeline.Post, error) {
	window, err := s.window(ctx)
	if err != nil {
		return nil, err
	}

	if params.MaxID != "" {
		idx := indexOf(window, params.MaxID)
		if idx < 0 {
			return nil, nil
		}
		window = window[idx+1:]
	}

	// min_id pages upward adjacent to the bound; since_id pages downward
	// from the newest post, both with exclusive bounds.
	if params.MinID != "" {
		idx := indexOf(window, params.MinID)
		if idx < 0 {
			return nil, nil
		}
		window = window[:idx]
		if params.Limit > 0 && len(window) > params.Limit {
			window = window[len(window)-params.Limit:]
		}
	} else if params.SinceID != "" {
		idx := indexOf(window, params.SinceID)
		if idx >= 0 {
			window = window[:idx]
		}
	}

	if params.Limit > 0 && len(window) > params.Limit {
		window = window[:params.Limit]
	}

	page := make([]timeline.Post, len(window))
	copy(page, window)
	return page, nil
}

func (s *Source) FetchItem(ctx context.Context, id string) (*timeline.Post, error) {
	window, err := s.window(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(window, id)
	if idx < 0 {
		return nil, fmt.Errorf("post %s not found in feed %s", id, s.cfg.URL)
	}

	post := window[idx]
	return &post, nil
}

// FetchContext synthesizes a context from the post's neighbors in the feed:
// older entries act as ancestors, newer entries as descendants.
func (s *Source) FetchContext(ctx context.Context, id string) (*timeline.Context, error) {
	window, err := s.window(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(window, id)
	if idx < 0 {
		return nil, fmt.Errorf("post %s not found in feed %s", id, s.cfg.URL)
	}

	newer := window[:idx]
	if len(newer) > contextSideLimit {
		newer = newer[len(newer)-contextSideLimit:]
	}

	older := window[idx+1:]
	if len(older) > contextSideLimit {
		older = older[:contextSideLimit]
	}

	pctx := &timeline.Context{
		Ancestors:   make([]timeline.Post, len(older)),
		Descendants: make([]timeline.Post, 0, len(newer)),
	}
	copy(pctx.Ancestors, older)

	for i := len(newer) - 1; i >= 0; i-- {
		pctx.Descendants = append(pctx.Descendants, newer[i])
	}

	return pctx, nil
}

func (s *Source) window(ctx context.Context) ([]timeline.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && time.Since(s.fetchedAt) < s.cfg.SnapshotTTL {
		return s.snapshot, nil
	}

	data, err := s.fetch(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	parsed, err := s.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	account := s.feedAccount(parsed)

	posts := make([]timeline.Post, 0, len(parsed.Items))
	seen := make(map[string]struct{}, len(parsed.Items))
	for _, item := range parsed.Items {
		post := s.normalizeItem(ctx, item, account)
		if _, ok := seen[post.ID]; ok {
			continue
		}
		seen[post.ID] = struct{}{}
		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	s.snapshot = posts
	s.fetchedAt = time.Now()

	return s.snapshot, nil
}

func (s *Source) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (s *Source) feedAccount(parsed *gofeed.Feed) timeline.Account {
	account := timeline.Account{
		ID:          postID(cmp.Or(parsed.Link, s.cfg.URL)),
		Username:    hostOf(cmp.Or(parsed.Link, s.cfg.URL)),
		DisplayName: parsed.Title,
	}

	if parsed.Image != nil {
		account.AvatarURL = parsed.Image.URL
	}

	return account
}

func (s *Source) normalizeItem(ctx context.Context, item *gofeed.Item, account timeline.Account) timeline.Post {
	post := timeline.Post{
		ID:      postID(cmp.Or(item.GUID, item.Link)),
		Account: account,
		Content: cmp.Or(item.Content, item.Description),
		URL:     item.Link,
	}

	if item.PublishedParsed != nil {
		post.CreatedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		post.CreatedAt = *item.UpdatedParsed
	}

	// Extract first enclosure if available (RSS 2.0 spec allows only one per item)
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		if media, ok := mediaFromEnclosure(item.Enclosures[0]); ok {
			post.MediaAttachments = []timeline.Media{media}
		}
	}

	if post.Content == "" && s.cfg.ExtractContent && item.Link != "" {
		if content, err := s.extractArticle(ctx, item.Link); err == nil {
			post.Content = content
		} else {
			slog.Debug("Article extraction failed", "url", item.Link, "error", err)
		}
	}

	return post
}

// extractArticle fetches the linked page and pulls its readable body, for
// feeds that publish title-only entries.
func (s *Source) extractArticle(ctx context.Context, link string) (string, error) {
	data, err := s.fetch(ctx, link)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if article.Content == "" {
		return "", fmt.Errorf("no readable content in %s", link)
	}

	return article.Content, nil
}

func mediaFromEnclosure(enclosure *gofeed.Enclosure) (timeline.Media, bool) {
	var kind string
	switch {
	case strings.HasPrefix(enclosure.Type, "image/"):
		kind = "image"
	case strings.HasPrefix(enclosure.Type, "video/"):
		kind = "video"
	case strings.HasPrefix(enclosure.Type, "audio/"):
		kind = "audio"
	default:
		return timeline.Media{}, false
	}

	return timeline.Media{
		ID:   postID(enclosure.URL),
		Type: kind,
		URL:  enclosure.URL,
	}, true
}

// postID derives a stable opaque identifier from a feed entry GUID or URL.
func postID(guid string) string {
	hash := sha256.Sum256([]byte(guid))
	return hex.EncodeToString(hash[:16])
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

func indexOf(posts []timeline.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}
