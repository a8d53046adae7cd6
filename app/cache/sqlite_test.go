package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open test cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testPosts(ids ...string) []timeline.Post {
	posts := make([]timeline.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, timeline.Post{
			ID:        id,
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Content:   "post " + id,
		})
	}
	return posts
}

func TestSQLiteStore_MissReturnsNil(t *testing.T) {
	store := newTestStore(t)

	posts, err := store.Get(context.Background(), "home:0")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if posts != nil {
		t.Errorf("Expected nil on miss, got %d posts", len(posts))
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testPosts("3", "2", "1")
	want[0].Reblog = &timeline.Post{ID: "99", Content: "boosted"}

	if err := store.Set(ctx, "home:0", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "home:0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 posts, got %d", len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("Post %d: expected ID %s, got %s", i, want[i].ID, got[i].ID)
		}
	}
	if got[0].Reblog == nil || got[0].Reblog.ID != "99" {
		t.Error("Embedded reblog did not survive the round trip")
	}
}

func TestSQLiteStore_SetReplacesWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "home:0", testPosts("1", "2")); err != nil {
		t.Fatalf("First set failed: %v", err)
	}
	if err := store.Set(ctx, "home:0", testPosts("9")); err != nil {
		t.Fatalf("Second set failed: %v", err)
	}

	got, err := store.Get(ctx, "home:0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "9" {
		t.Errorf("Expected last write to win with [9], got %v", got)
	}
}

func TestSQLiteStore_IsValidTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	valid, err := store.IsValid(ctx, "home:0", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if valid {
		t.Error("Missing entry must not be valid")
	}

	if err := store.Set(ctx, "home:0", testPosts("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	valid, err = store.IsValid(ctx, "home:0", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !valid {
		t.Error("Fresh entry should be valid within its TTL")
	}

	// Unix-second granularity: a zero TTL always classifies as stale.
	valid, err = store.IsValid(ctx, "home:0", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if valid {
		t.Error("Entry should be stale for a zero TTL")
	}
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "home:0", testPosts("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "tag:golang", testPosts("7", "8")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	home, _ := store.Get(ctx, "home:0")
	tag, _ := store.Get(ctx, "tag:golang")
	if len(home) != 1 || len(tag) != 2 {
		t.Errorf("Expected independent windows, got %d and %d posts", len(home), len(tag))
	}
}
