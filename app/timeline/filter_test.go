package timeline

import (
	"testing"
)

func TestFiltererExcludes(t *testing.T) {
	filterer := NewFilterer([]FilterRule{
		{Field: "content", Excludes: []string{"spoiler"}},
	})

	posts := []Post{
		{ID: "1", Content: "Nice sunset today"},
		{ID: "2", Content: "Big SPOILER about the finale"},
		{ID: "3", Content: "Lunch"},
	}

	kept := filterer.Run(posts)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 posts to survive, got %d", len(kept))
	}
	if kept[0].ID != "1" || kept[1].ID != "3" {
		t.Errorf("Unexpected surviving posts: %s, %s", kept[0].ID, kept[1].ID)
	}
}

func TestFiltererIncludes(t *testing.T) {
	filterer := NewFilterer([]FilterRule{
		{Field: "content", Includes: []string{"golang", "rust"}},
	})

	posts := []Post{
		{ID: "1", Content: "Learning Golang generics"},
		{ID: "2", Content: "Gardening tips"},
		{ID: "3", Content: "Rust borrow checker"},
	}

	kept := filterer.Run(posts)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 posts to survive, got %d", len(kept))
	}
	if kept[0].ID != "1" || kept[1].ID != "3" {
		t.Errorf("Unexpected surviving posts: %s, %s", kept[0].ID, kept[1].ID)
	}
}

func TestFiltererAccountField(t *testing.T) {
	filterer := NewFilterer([]FilterRule{
		{Field: "account", Excludes: []string{"bot"}},
	})

	posts := []Post{
		{ID: "1", Account: Account{Username: "alice"}},
		{ID: "2", Account: Account{Username: "newsbot"}},
		{ID: "3", Account: Account{Username: "carol", DisplayName: "Carol the Bot"}},
	}

	kept := filterer.Run(posts)
	if len(kept) != 1 || kept[0].ID != "1" {
		t.Errorf("Expected only post 1 to survive, got %d posts", len(kept))
	}
}

func TestFiltererJudgesBoostedPost(t *testing.T) {
	filterer := NewFilterer([]FilterRule{
		{Field: "content", Excludes: []string{"muted"}},
	})

	posts := []Post{
		{ID: "1", Content: "", Reblog: &Post{ID: "10", Content: "muted topic"}},
		{ID: "2", Content: "", Reblog: &Post{ID: "11", Content: "fine topic"}},
	}

	kept := filterer.Run(posts)
	if len(kept) != 1 || kept[0].ID != "2" {
		t.Errorf("Expected boost of muted post to be dropped, got %d posts", len(kept))
	}
}

func TestFiltererNilAndEmpty(t *testing.T) {
	posts := []Post{{ID: "1"}, {ID: "2"}}

	var nilFilterer *Filterer
	if got := nilFilterer.Run(posts); len(got) != 2 {
		t.Errorf("Nil filterer should pass everything through, got %d", len(got))
	}

	if got := NewFilterer(nil).Run(posts); len(got) != 2 {
		t.Errorf("Empty rules should pass everything through, got %d", len(got))
	}
}
