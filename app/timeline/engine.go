package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feedcomb/app/scheduler"
)

// CacheStore is the slice of the persistent cache the engine needs. Cache
// failures never block an operation; they are logged and ignored.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]Post, error)
	Set(ctx context.Context, key string, posts []Post) error
	IsValid(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Config struct {
	MaxTotalPosts  int           // in-memory window ceiling
	PageSize       int           // items per fetched page
	CacheTTL       time.Duration // cache-first window freshness
	OlderThreshold int           // ShouldLoadOlder fires within this many items of the end
	NewerThreshold int           // ShouldLoadNewer fires within this many items of the top
	Filter         *Filterer     // optional mute rules applied to fetched pages
}

func DefaultConfig() Config {
	return Config{
		MaxTotalPosts:  400,
		PageSize:       20,
		CacheTTL:       10 * time.Minute,
		OlderThreshold: 5,
		NewerThreshold: 3,
	}
}

// Engine is the feed state machine. It owns the canonical post window, the
// pending-new-post queue, and both pagination cursors for one feed identity,
// and is discarded when the feed identity changes.
//
// All operations are safe for concurrent use. Guard flags make each
// operation class idempotent against re-entrant calls: a LoadMore issued
// while one is in flight is a no-op, not queued. The lock is never held
// across a network call; a generation counter decides whether a late page
// still has a window to land in.
type Engine struct {
	feed   string
	source Source
	sched  *scheduler.Scheduler
	store  CacheStore // nil disables caching
	cfg    Config

	mu             sync.Mutex
	state          FeedState
	older          *pageCursor
	newer          *pageCursor
	isLoadingNewer bool
	gen            uint64
}

func NewEngine(feed string, source Source, sched *scheduler.Scheduler, store CacheStore, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxTotalPosts <= 0 {
		cfg.MaxTotalPosts = def.MaxTotalPosts
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.OlderThreshold <= 0 {
		cfg.OlderThreshold = def.OlderThreshold
	}
	if cfg.NewerThreshold <= 0 {
		cfg.NewerThreshold = def.NewerThreshold
	}

	return &Engine{
		feed:   feed,
		source: source,
		sched:  sched,
		store:  store,
		cfg:    cfg,
	}
}

// State returns a snapshot of the current feed state. Slices are copied so
// the rendering layer can hold them across later mutations.
func (e *Engine) State() FeedState {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.state
	snap.Posts = append([]Post(nil), e.state.Posts...)
	snap.PendingNewPosts = append([]Post(nil), e.state.PendingNewPosts...)
	return snap
}

// Load performs an initial load: the cached window is shown immediately when
// present and fresh, then a network fetch replaces it.
func (e *Engine) Load(ctx context.Context) error {
	return e.load(ctx, false)
}

// Refresh reloads the feed from the network, skipping the cache-first step.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.load(ctx, true)
}

func (e *Engine) load(ctx context.Context, refreshing bool) error {
	e.mu.Lock()
	if e.state.IsLoading || e.state.IsRefreshing {
		e.mu.Unlock()
		return nil
	}
	if refreshing {
		e.state.IsRefreshing = true
	} else {
		e.state.IsLoading = true
	}
	e.state.Err = nil
	gen := e.gen
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		// A bumped generation means a navigation or reset took over the
		// guard flags; they are not this operation's to clear anymore.
		if e.gen == gen {
			e.state.IsLoading = false
			e.state.IsRefreshing = false
		}
		e.mu.Unlock()
	}()

	if !refreshing && e.store != nil {
		e.loadFromCache(ctx, gen)
	}

	result, err := e.sched.Do(ctx, func(ctx context.Context) (any, error) {
		return e.source.FetchPage(ctx, e.feed, CursorParams{Limit: e.cfg.PageSize})
	}, scheduler.PriorityHigh, e.feed+":load")

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		// The window was replaced while the fetch was in flight (anchor
		// jump, reset). The page has nowhere to land.
		slog.Debug("Discarding stale load result", "feed", e.feed)
		return nil
	}

	if err != nil {
		e.state.Err = fmt.Errorf("failed to load feed: %w", err)
		return e.state.Err
	}

	page := result.([]Post)
	e.replaceWindowLocked(Trim(e.cfg.Filter.Run(page), e.cfg.MaxTotalPosts, TrimOldest), "")
	// Exhaustion is judged on the raw page: a fully muted page still means
	// the feed has more below.
	e.state.HasMore = len(page) > 0
	e.state.LastFetchedAt = time.Now()
	e.persistLocked()

	slog.Debug("Feed loaded", "feed", e.feed, "items", len(page), "refresh", refreshing)
	return nil
}

// loadFromCache surfaces a fresh cached window while the network load runs.
func (e *Engine) loadFromCache(ctx context.Context, gen uint64) {
	valid, err := e.store.IsValid(ctx, e.feed, e.cfg.CacheTTL)
	if err != nil {
		slog.Warn("Cache validity check failed", "feed", e.feed, "error", err)
		return
	}
	if !valid {
		return
	}

	posts, err := e.store.Get(ctx, e.feed)
	if err != nil {
		slog.Warn("Cache read failed", "feed", e.feed, "error", err)
		return
	}
	if len(posts) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	e.replaceWindowLocked(Trim(posts, e.cfg.MaxTotalPosts, TrimOldest), "")
	e.state.HasMore = true
	slog.Debug("Cache hit", "feed", e.feed, "items", len(posts))
}

// LoadMore appends the next older page. No-op when the window is empty, the
// feed is exhausted, or an older fetch is already in flight.
func (e *Engine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if len(e.state.Posts) == 0 || !e.state.HasMore || e.state.IsLoadingMore || e.state.IsLoading ||
		(e.older != nil && e.older.exhausted()) {
		e.mu.Unlock()
		return nil
	}
	e.state.IsLoadingMore = true
	e.state.Err = nil
	if e.older == nil {
		oldest := e.state.Posts[len(e.state.Posts)-1].ID
		e.older = newPageCursor(e.source, e.feed, dirOlder, oldest, e.cfg.PageSize)
	}
	cursor := e.older
	gen := e.gen
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.gen == gen {
			e.state.IsLoadingMore = false
		}
		e.mu.Unlock()
	}()

	result, err := e.sched.Do(ctx, func(ctx context.Context) (any, error) {
		return cursor.next(ctx)
	}, scheduler.PriorityNormal, e.feed+":older")

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || e.older != cursor {
		slog.Debug("Discarding page from superseded cursor", "feed", e.feed, "direction", "older")
		return nil
	}

	if err != nil {
		e.state.Err = fmt.Errorf("failed to load older page: %w", err)
		return e.state.Err
	}

	page := result.([]Post)
	fresh := FilterNew(idSet(e.state.Posts, e.state.PendingNewPosts), e.cfg.Filter.Run(page))
	e.state.Posts = Trim(append(e.state.Posts, fresh...), e.cfg.MaxTotalPosts, TrimNewest)
	e.state.HasMore = len(page) > 0
	e.state.LastFetchedAt = time.Now()
	e.persistLocked()

	slog.Debug("Older page merged", "feed", e.feed, "fetched", len(page), "new", len(fresh))
	return nil
}

// LoadNewer fetches posts newer than the window and stages them in
// PendingNewPosts. They only enter the visible window when the caller applies
// them, so a background poll never yanks the scroll position.
func (e *Engine) LoadNewer(ctx context.Context) error {
	e.mu.Lock()
	if len(e.state.Posts) == 0 || e.isLoadingNewer || e.state.IsLoading {
		e.mu.Unlock()
		return nil
	}
	e.isLoadingNewer = true
	e.state.Err = nil
	if e.newer == nil {
		newest := e.state.Posts[0].ID
		if len(e.state.PendingNewPosts) > 0 {
			newest = e.state.PendingNewPosts[0].ID
		}
		e.newer = newPageCursor(e.source, e.feed, dirNewer, newest, e.cfg.PageSize)
	}
	cursor := e.newer
	gen := e.gen
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.gen == gen {
			e.isLoadingNewer = false
		}
		e.mu.Unlock()
	}()

	result, err := e.sched.Do(ctx, func(ctx context.Context) (any, error) {
		return cursor.next(ctx)
	}, scheduler.PriorityLow, e.feed+":newer")

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || e.newer != cursor {
		slog.Debug("Discarding page from superseded cursor", "feed", e.feed, "direction", "newer")
		return nil
	}

	if err != nil {
		e.state.Err = fmt.Errorf("failed to load newer page: %w", err)
		return e.state.Err
	}

	page := result.([]Post)
	fresh := FilterNew(idSet(e.state.Posts, e.state.PendingNewPosts), e.cfg.Filter.Run(page))
	e.state.PendingNewPosts = append(fresh, e.state.PendingNewPosts...)
	e.state.LastFetchedAt = time.Now()

	slog.Debug("Newer page staged", "feed", e.feed, "fetched", len(page), "new", len(fresh), "pending", len(e.state.PendingNewPosts))
	return nil
}

// ApplyPendingNewPosts merges the staged queue into the visible window,
// trimming overflow from the oldest side.
func (e *Engine) ApplyPendingNewPosts() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.PendingNewPosts) == 0 {
		return
	}

	merged := append(e.state.PendingNewPosts, e.state.Posts...)
	e.state.Posts = Trim(merged, e.cfg.MaxTotalPosts, TrimOldest)
	e.state.PendingNewPosts = nil
	e.persistLocked()
}

// JumpToPost replaces the window with the target post followed by one older
// page, for switching from grid to list at a tapped item. Unlike
// LoadFromAnchor no newer context is fetched, so the window stays
// newest-first and unanchored.
func (e *Engine) JumpToPost(ctx context.Context, id string) error {
	gen := e.beginNavigation()

	result, err := e.sched.Do(ctx, func(ctx context.Context) (any, error) {
		target, err := e.source.FetchItem(ctx, id)
		if err != nil {
			return nil, err
		}
		older, err := e.source.FetchPage(ctx, e.feed, CursorParams{MaxID: id, Limit: e.cfg.PageSize})
		if err != nil {
			return nil, err
		}
		older = e.cfg.Filter.Run(older)
		window := make([]Post, 0, len(older)+1)
		window = append(window, *target)
		window = append(window, older...)
		return window, nil
	}, scheduler.PriorityHigh, "jump:"+id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		return nil
	}

	if err != nil {
		e.state.Err = fmt.Errorf("failed to jump to post %s: %w", id, err)
		return e.state.Err
	}

	window := result.([]Post)
	e.replaceWindowLocked(window, "")
	e.state.HasMore = len(window) > 1
	e.state.LastFetchedAt = time.Now()
	e.persistLocked()

	slog.Debug("Jumped to post", "feed", e.feed, "id", id, "items", len(window))
	return nil
}

// LoadFromAnchor re-centers the window on the target post with its full
// context: reversed descendants, then the target, then ancestors. This is the
// primary re-centering path because it needs no render-height estimation. The
// fetch is atomic: on any failure the prior window is left untouched and only
// the error flag is set.
func (e *Engine) LoadFromAnchor(ctx context.Context, id string) error {
	gen := e.beginNavigation()

	result, err := e.sched.Do(ctx, func(ctx context.Context) (any, error) {
		return e.loadAnchorWindow(ctx, id)
	}, scheduler.PriorityHigh, "anchor:"+id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		return nil
	}

	if err != nil {
		e.state.Err = fmt.Errorf("failed to load anchor context for %s: %w", id, err)
		return e.state.Err
	}

	e.replaceWindowLocked(result.([]Post), id)
	e.state.HasMore = true
	e.state.LastFetchedAt = time.Now()
	e.persistLocked()

	slog.Debug("Anchored window loaded", "feed", e.feed, "anchor", id, "items", len(e.state.Posts))
	return nil
}

// loadAnchorWindow fetches the target and its context, composing
// [descendants reversed, target, ancestors].
func (e *Engine) loadAnchorWindow(ctx context.Context, id string) ([]Post, error) {
	target, err := e.source.FetchItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch anchor item: %w", err)
	}

	pctx, err := e.source.FetchContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch anchor context: %w", err)
	}

	// Mute rules apply to the surroundings but never to the target itself.
	descendants := e.cfg.Filter.Run(pctx.Descendants)
	ancestors := e.cfg.Filter.Run(pctx.Ancestors)

	window := make([]Post, 0, len(descendants)+1+len(ancestors))
	for i := len(descendants) - 1; i >= 0; i-- {
		window = append(window, descendants[i])
	}
	window = append(window, *target)
	window = append(window, ancestors...)
	return window, nil
}

// beginNavigation bumps the generation so any in-flight page lands nowhere,
// and invalidates both cursors. The new cursor identity is the cancellation
// token; nothing aborts mid-flight. Guard flags are released here because
// the orphaned operations' deferred clears stand down on the stale
// generation.
func (e *Engine) beginNavigation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.older = nil
	e.newer = nil
	e.state.IsLoading = false
	e.state.IsRefreshing = false
	e.state.IsLoadingMore = false
	e.isLoadingNewer = false
	e.state.Err = nil
	return e.gen
}

// replaceWindowLocked installs a wholesale new window: cursors invalidated,
// pending queue cleared.
func (e *Engine) replaceWindowLocked(posts []Post, anchorID string) {
	e.state.Posts = posts
	e.state.PendingNewPosts = nil
	e.state.AnchorPostID = anchorID
	e.state.Err = nil
	e.older = nil
	e.newer = nil
}

// RemovePost drops the post from the window and the pending queue, including
// boosts wrapping it. Cursors and cache freshness are untouched.
func (e *Engine) RemovePost(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Posts = removeByID(e.state.Posts, id)
	e.state.PendingNewPosts = removeByID(e.state.PendingNewPosts, id)
	if e.state.AnchorPostID == id {
		e.state.AnchorPostID = ""
	}
	e.persistLocked()
}

func removeByID(posts []Post, id string) []Post {
	out := posts[:0]
	for _, p := range posts {
		if p.ID == id || (p.Reblog != nil && p.Reblog.ID == id) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// UpdatePost applies fn to the post with the given id, wherever it appears:
// as a window post, a pending post, or the original embedded in a boost. The
// mutation is copy-based; the embedded reblog is never aliased.
func (e *Engine) UpdatePost(id string, fn func(*Post)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	updateByID(e.state.Posts, id, fn)
	updateByID(e.state.PendingNewPosts, id, fn)
	e.persistLocked()
}

func updateByID(posts []Post, id string, fn func(*Post)) {
	for i := range posts {
		if posts[i].ID == id {
			p := posts[i]
			fn(&p)
			posts[i] = p
			continue
		}
		if posts[i].Reblog != nil && posts[i].Reblog.ID == id {
			rb := *posts[i].Reblog
			fn(&rb)
			posts[i].Reblog = &rb
		}
	}
}

// Reset returns the engine to its empty initial state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.older = nil
	e.newer = nil
	e.isLoadingNewer = false
	e.state = FeedState{}
}

// ShouldLoadOlder reports whether rendering the item at index should trigger
// an older-page fetch.
func (e *Engine) ShouldLoadOlder(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.state.Posts)
	if n == 0 || !e.state.HasMore || e.state.IsLoadingMore || e.state.IsLoading {
		return false
	}
	return index >= n-e.cfg.OlderThreshold
}

// ShouldLoadNewer reports whether rendering the item at index should trigger
// a newer-page poll.
func (e *Engine) ShouldLoadNewer(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.Posts) == 0 || e.isLoadingNewer || e.state.IsLoading {
		return false
	}
	return index < e.cfg.NewerThreshold
}

// persistLocked writes the current window to the cache without blocking the
// state transition. Failures are logged, never surfaced.
func (e *Engine) persistLocked() {
	if e.store == nil {
		return
	}

	posts := append([]Post(nil), e.state.Posts...)
	key := e.feed
	store := e.store

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Set(ctx, key, posts); err != nil {
			slog.Warn("Cache write failed", "feed", key, "error", err)
		}
	}()
}
