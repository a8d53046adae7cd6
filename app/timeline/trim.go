package timeline

// TrimSide selects which end of a newest-first window gives up posts when the
// window exceeds its capacity.
type TrimSide int

const (
	// TrimOldest drops overflow from the tail (oldest posts). Used after
	// prepending newer posts.
	TrimOldest TrimSide = iota
	// TrimNewest drops overflow from the head (newest posts). Used after
	// appending older pages.
	TrimNewest
)

// Trim bounds a newest-first post window to max items, dropping from the
// given side. A max of zero or less disables trimming.
func Trim(posts []Post, max int, side TrimSide) []Post {
	if max <= 0 || len(posts) <= max {
		return posts
	}

	if side == TrimNewest {
		return posts[len(posts)-max:]
	}
	return posts[:max]
}

// FilterNew returns the posts from incoming whose IDs are not already present
// in seen, preserving order. Duplicates within incoming itself are also
// collapsed.
func FilterNew(seen map[string]struct{}, incoming []Post) []Post {
	if len(incoming) == 0 {
		return nil
	}

	fresh := make([]Post, 0, len(incoming))
	for _, p := range incoming {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		fresh = append(fresh, p)
	}
	return fresh
}

// idSet builds the set of IDs across all given windows.
func idSet(windows ...[]Post) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, w := range windows {
		for _, p := range w {
			seen[p.ID] = struct{}{}
		}
	}
	return seen
}
