package timeline

import (
	"context"
	"log/slog"
)

type direction int

const (
	dirOlder direction = iota
	dirNewer
)

func (d direction) String() string {
	if d == dirNewer {
		return "newer"
	}
	return "older"
}

// pageCursor wraps the data source's page fetch into a stateful iterator for
// one direction. Construction has no side effect; the underlying fetch does
// not happen until the first next call. Exhaustion is sticky: once a page
// comes back empty, every later next returns an empty page without a network
// call.
//
// Cursor identity doubles as the engine's cancellation token: when a window
// is replaced wholesale the engine allocates fresh cursors, and a page
// arriving on an old cursor has nowhere to land.
type pageCursor struct {
	source Source
	feed   string
	dir    direction
	bound  string // exclusive id bound for the next fetch
	limit  int
	done   bool
}

func newPageCursor(source Source, feed string, dir direction, seedID string, limit int) *pageCursor {
	return &pageCursor{
		source: source,
		feed:   feed,
		dir:    dir,
		bound:  seedID,
		limit:  limit,
	}
}

// next fetches the next page in the cursor's direction. Pages are returned
// newest-first, matching the source's recency order.
func (c *pageCursor) next(ctx context.Context) ([]Post, error) {
	if c.done {
		return nil, nil
	}

	params := CursorParams{Limit: c.limit}
	switch c.dir {
	case dirOlder:
		params.MaxID = c.bound
	case dirNewer:
		params.MinID = c.bound
	}

	page, err := c.source.FetchPage(ctx, c.feed, params)
	if err != nil {
		return nil, err
	}

	if len(page) == 0 {
		c.done = true
		slog.Debug("Pagination cursor exhausted", "feed", c.feed, "direction", c.dir.String())
		return nil, nil
	}

	switch c.dir {
	case dirOlder:
		c.bound = page[len(page)-1].ID // oldest item of the page
	case dirNewer:
		c.bound = page[0].ID // newest item of the page
	}

	return page, nil
}

// exhausted reports whether the cursor has hit the end of the feed.
func (c *pageCursor) exhausted() bool {
	return c.done
}
