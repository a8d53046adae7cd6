package rsstl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

// testFeed renders an RSS document with n items, newest first. Item i has
// GUID "item-i" and a publication time that decreases with i.
func testFeed(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
`)
	base := time.Date(2023, 7, 3, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `    <item>
      <title>Item %d</title>
      <link>https://example.com/item%d</link>
      <description>Body %d</description>
      <guid>item-%d</guid>
      <pubDate>%s</pubDate>
    </item>
`, i, i, i, i, base.Add(-time.Duration(i)*time.Hour).Format(time.RFC1123Z))
	}
	b.WriteString("  </channel>\n</rss>")
	return b.String()
}

func newTestSource(t *testing.T, body string) *Source {
	t.Helper()

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return New(Config{
		URL:       server.URL,
		UserAgent: "feedcomb/test",
		Timeout:   time.Second,
	})
}

func pageIDs(posts []timeline.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFetchPageNewestFirst(t *testing.T) {
	source := newTestSource(t, testFeed(5))

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{Limit: 3})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(posts) != 3 {
		t.Fatalf("Expected 3 posts, got: %d", len(posts))
	}
	if posts[0].ID != postID("item-1") || posts[2].ID != postID("item-3") {
		t.Errorf("Unexpected page order: %v", pageIDs(posts))
	}
	if !posts[0].CreatedAt.After(posts[1].CreatedAt) {
		t.Error("Expected posts ordered newest first")
	}
	if posts[0].Content != "Body 1" {
		t.Errorf("Expected description as content, got: %s", posts[0].Content)
	}
	if posts[0].Account.DisplayName != "Test Feed" {
		t.Errorf("Expected feed title as account name, got: %s", posts[0].Account.DisplayName)
	}
	if posts[0].Account.Username != "example.com" {
		t.Errorf("Expected feed host as username, got: %s", posts[0].Account.Username)
	}
}

func TestFetchPageMaxIDPagesOlder(t *testing.T) {
	source := newTestSource(t, testFeed(6))

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{
		MaxID: postID("item-2"),
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{postID("item-3"), postID("item-4")}
	if len(posts) != 2 || posts[0].ID != expected[0] || posts[1].ID != expected[1] {
		t.Errorf("Expected page %v, got: %v", expected, pageIDs(posts))
	}
}

func TestFetchPageMinIDPagesNewerAdjacent(t *testing.T) {
	source := newTestSource(t, testFeed(6))

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{
		MinID: postID("item-5"),
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// The page adjacent to the bound, not the newest posts.
	expected := []string{postID("item-3"), postID("item-4")}
	if len(posts) != 2 || posts[0].ID != expected[0] || posts[1].ID != expected[1] {
		t.Errorf("Expected page %v, got: %v", expected, pageIDs(posts))
	}
}

func TestFetchPageUnknownBoundReturnsEmpty(t *testing.T) {
	source := newTestSource(t, testFeed(3))

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{
		MaxID: "missing",
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("Expected empty page, got: %v", pageIDs(posts))
	}
}

func TestSnapshotReuseWithinTTL(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(testFeed(3)))
	}))
	defer server.Close()

	source := New(Config{
		URL:         server.URL,
		Timeout:     time.Second,
		SnapshotTTL: time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{Limit: 2}); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	if requests != 1 {
		t.Errorf("Expected a single upstream fetch, got: %d", requests)
	}
}

func TestFetchItem(t *testing.T) {
	source := newTestSource(t, testFeed(4))

	post, err := source.FetchItem(context.Background(), postID("item-3"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if post.URL != "https://example.com/item3" {
		t.Errorf("Unexpected post URL: %s", post.URL)
	}

	if _, err := source.FetchItem(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown post")
	}
}

func TestFetchContextFromNeighbors(t *testing.T) {
	source := newTestSource(t, testFeed(5))

	pctx, err := source.FetchContext(context.Background(), postID("item-3"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Ancestors newest-first, descendants oldest-first.
	if len(pctx.Ancestors) != 2 || pctx.Ancestors[0].ID != postID("item-4") || pctx.Ancestors[1].ID != postID("item-5") {
		t.Errorf("Unexpected ancestors: %v", pageIDs(pctx.Ancestors))
	}
	if len(pctx.Descendants) != 2 || pctx.Descendants[0].ID != postID("item-2") || pctx.Descendants[1].ID != postID("item-1") {
		t.Errorf("Unexpected descendants: %v", pageIDs(pctx.Descendants))
	}
}

func TestDuplicateGUIDsDropped(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Dupes</title>
    <link>https://example.com</link>
    <item><title>A</title><guid>same</guid><pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate></item>
    <item><title>B</title><guid>same</guid><pubDate>Mon, 03 Jul 2023 09:00:00 +0000</pubDate></item>
  </channel>
</rss>`
	source := newTestSource(t, feed)

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{Limit: 10})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("Expected duplicate GUID collapsed, got %d posts", len(posts))
	}
}

func TestEnclosureBecomesMedia(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Media</title>
    <link>https://example.com</link>
    <item>
      <title>Photo</title>
      <guid>photo-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate>
      <enclosure url="https://example.com/p.jpg" type="image/jpeg" length="1000"/>
    </item>
  </channel>
</rss>`
	source := newTestSource(t, feed)

	posts, err := source.FetchPage(context.Background(), "rss", timeline.CursorParams{Limit: 10})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(posts) != 1 || len(posts[0].MediaAttachments) != 1 {
		t.Fatalf("Expected one post with one attachment, got: %+v", posts)
	}

	media := posts[0].MediaAttachments[0]
	if media.Type != "image" {
		t.Errorf("Expected image attachment, got: %s", media.Type)
	}
	if media.URL != "https://example.com/p.jpg" {
		t.Errorf("Unexpected media URL: %s", media.URL)
	}
}
