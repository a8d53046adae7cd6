package mockapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

// Store holds a deterministic synthetic timeline, newest first, with
// numeric IDs so cursor bounds compare the way the real API's do. The same
// seed count always produces the same posts.
type Store struct {
	posts []timeline.Post
	byID  map[string]int
}

var sampleAccounts = []timeline.Account{
	{ID: "1", Username: "ada", DisplayName: "Ada L.", AvatarURL: "https://mock.local/avatars/ada.png"},
	{ID: "2", Username: "grace", DisplayName: "Grace H.", AvatarURL: "https://mock.local/avatars/grace.png"},
	{ID: "3", Username: "edsger", DisplayName: "Edsger D.", AvatarURL: "https://mock.local/avatars/edsger.png"},
}

var sampleRatios = []float64{1.0, 1.5, 0.75, 1.78}

func NewStore(count int) *Store {
	now := time.Now().UTC().Truncate(time.Minute)

	posts := make([]timeline.Post, 0, count)
	byID := make(map[string]int, count)

	for i := 0; i < count; i++ {
		id := count - i
		post := timeline.Post{
			ID:              strconv.Itoa(id),
			CreatedAt:       now.Add(-time.Duration(i) * time.Minute),
			Account:         sampleAccounts[id%len(sampleAccounts)],
			Content:         fmt.Sprintf("<p>Synthetic post %d</p>", id),
			URL:             fmt.Sprintf("https://mock.local/posts/%d", id),
			RepliesCount:    id % 5,
			ReblogsCount:    id % 7,
			FavouritesCount: id % 11,
		}

		if id%3 == 0 {
			post.MediaAttachments = []timeline.Media{{
				ID:          fmt.Sprintf("m%d", id),
				Type:        "image",
				URL:         fmt.Sprintf("https://mock.local/media/%d.jpg", id),
				PreviewURL:  fmt.Sprintf("https://mock.local/media/%d_small.jpg", id),
				AspectRatio: sampleRatios[id%len(sampleRatios)],
			}}
		}

		// Every 7th post boosts the one right below it.
		if id%7 == 0 && id > 1 {
			inner := post
			inner.ID = strconv.Itoa(id - 1)
			inner.URL = fmt.Sprintf("https://mock.local/posts/%d", id-1)
			inner.Content = fmt.Sprintf("<p>Synthetic post %d</p>", id-1)
			inner.Account = sampleAccounts[(id-1)%len(sampleAccounts)]
			post.Reblog = &inner
			post.Content = ""
		}

		byID[post.ID] = len(posts)
		posts = append(posts, post)
	}

	return &Store{posts: posts, byID: byID}
}

// Page applies exclusive max_id/min_id/since_id bounds over the numeric ID
// order and returns at most limit posts, newest first.
func (s *Store) Page(params timeline.CursorParams) []timeline.Post {
	window := s.posts

	if params.MaxID != "" {
		bound := numeric(params.MaxID)
		window = after(window, func(p timeline.Post) bool { return numeric(p.ID) < bound })
	}

	if params.MinID != "" {
		bound := numeric(params.MinID)
		newer := before(window, func(p timeline.Post) bool { return numeric(p.ID) <= bound })
		if params.Limit > 0 && len(newer) > params.Limit {
			newer = newer[len(newer)-params.Limit:]
		}
		window = newer
	} else if params.SinceID != "" {
		bound := numeric(params.SinceID)
		window = before(window, func(p timeline.Post) bool { return numeric(p.ID) <= bound })
	}

	if params.Limit > 0 && len(window) > params.Limit {
		window = window[:params.Limit]
	}

	page := make([]timeline.Post, len(window))
	copy(page, window)
	return page
}

func (s *Store) Get(id string) (timeline.Post, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return timeline.Post{}, false
	}
	return s.posts[idx], true
}

// Context returns up to 20 neighbors per side: ancestors newest-first,
// descendants oldest-first.
func (s *Store) Context(id string) (timeline.Context, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return timeline.Context{}, false
	}

	const side = 20

	older := s.posts[idx+1:]
	if len(older) > side {
		older = older[:side]
	}

	newer := s.posts[:idx]
	if len(newer) > side {
		newer = newer[len(newer)-side:]
	}

	pctx := timeline.Context{
		Ancestors:   append([]timeline.Post(nil), older...),
		Descendants: make([]timeline.Post, 0, len(newer)),
	}
	for i := len(newer) - 1; i >= 0; i-- {
		pctx.Descendants = append(pctx.Descendants, newer[i])
	}

	return pctx, true
}

func numeric(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return -1
	}
	return n
}

// after returns the suffix of posts starting at the first element matching
// the predicate. Posts are newest first, so this drops everything at or
// above an exclusive upper bound.
func after(posts []timeline.Post, match func(timeline.Post) bool) []timeline.Post {
	for i, p := range posts {
		if match(p) {
			return posts[i:]
		}
	}
	return nil
}

// before returns the prefix of posts up to the first element matching the
// predicate.
func before(posts []timeline.Post, match func(timeline.Post) bool) []timeline.Post {
	for i, p := range posts {
		if match(p) {
			return posts[:i]
		}
	}
	return posts
}
