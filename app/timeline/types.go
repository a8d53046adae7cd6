package timeline

import (
	"context"
	"time"
)

// Post model types

type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar"`
}

type Media struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"` // image, video, gifv, audio
	URL         string  `json:"url"`
	PreviewURL  string  `json:"preview_url"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Post is treated as an immutable value: mutations go through UpdatePost,
// which replaces the whole element. Reblog is a bounded one-level
// containment; the API never returns self-referential boosts.
type Post struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Account          Account   `json:"account"`
	Content          string    `json:"content"`
	URL              string    `json:"url"`
	MediaAttachments []Media   `json:"media_attachments"`
	RepliesCount     int       `json:"replies_count"`
	ReblogsCount     int       `json:"reblogs_count"`
	FavouritesCount  int       `json:"favourites_count"`
	Favourited       bool      `json:"favourited"`
	Reblogged        bool      `json:"reblogged"`
	Bookmarked       bool      `json:"bookmarked"`
	Reblog           *Post     `json:"reblog,omitempty"`
}

// Display resolves through the embedded reblog to the post that should be
// rendered. Counts and flags for interactions still belong to the wrapper.
func (p *Post) Display() *Post {
	if p.Reblog != nil {
		return p.Reblog
	}
	return p
}

// FeedState is the canonical in-memory window exposed to the rendering layer.
// PendingNewPosts is kept separate from Posts so a background fetch never
// causes a surprise scroll jump.
type FeedState struct {
	Posts           []Post
	PendingNewPosts []Post
	IsLoading       bool
	IsRefreshing    bool
	IsLoadingMore   bool
	HasMore         bool
	AnchorPostID    string
	LastFetchedAt   time.Time
	Err             error
}

// CursorParams are the pagination bounds understood by the data source.
// MaxID and SinceID are exclusive bounds, matching the remote API.
type CursorParams struct {
	MaxID   string
	MinID   string
	SinceID string
	Limit   int
}

// Context holds the surroundings of a single post: ancestors are strictly
// older posts in the same context, descendants strictly newer. Ancestors are
// ordered newest-first and descendants oldest-first, so an anchored window is
// composed as reversed descendants, target, ancestors.
type Context struct {
	Ancestors   []Post
	Descendants []Post
}

// Source is the paginated remote data source the engine reads from.
type Source interface {
	FetchPage(ctx context.Context, feed string, params CursorParams) ([]Post, error)
	FetchItem(ctx context.Context, id string) (*Post, error)
	FetchContext(ctx context.Context, id string) (*Context, error)
}
