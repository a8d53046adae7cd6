package layout

import (
	"context"
	"log/slog"
	"time"
)

// RestoreOutcome reports how a scroll restoration attempt ended.
type RestoreOutcome int

const (
	// Restored: the target's layout was found and the scroll applied.
	Restored RestoreOutcome = iota
	// Pending: the target is in the post window but not measured yet. The
	// caller should retry on the next layout-measurement event instead of
	// guessing an offset, since item heights vary too much to estimate.
	Pending
	// Missing: the target is not in the post window at all. The caller
	// decides whether to keep waiting for pagination or give up.
	Missing
)

func (o RestoreOutcome) String() string {
	switch o {
	case Restored:
		return "restored"
	case Pending:
		return "pending"
	default:
		return "missing"
	}
}

type RestoreOptions struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		MaxAttempts: 10,
		Delay:       50 * time.Millisecond,
	}
}

// Lookup resolves an item's measured layout, typically backed by the layout
// map the rendering layer maintains.
type Lookup func(id string) (Entry, bool)

// AttemptRestore polls the layout map for the target's entry, up to
// MaxAttempts with Delay between polls. On a hit it invokes apply with the
// entry's offset. inWindow reports whether the target currently exists in the
// post window; it separates Pending from Missing when the layout never
// materializes. The call is idempotent for an unchanged layout map.
func AttemptRestore(ctx context.Context, targetID string, lookup Lookup, inWindow func(id string) bool, apply func(offset float64), opts RestoreOptions) (RestoreOutcome, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRestoreOptions().MaxAttempts
	}

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if entry, ok := lookup(targetID); ok {
			apply(entry.Offset)
			slog.Debug("Scroll position restored", "id", targetID, "offset", entry.Offset, "attempt", attempt+1)
			return Restored, nil
		}

		if attempt == opts.MaxAttempts-1 || opts.Delay <= 0 {
			continue
		}

		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Pending, ctx.Err()
		case <-timer.C:
		}
	}

	if inWindow != nil && inWindow(targetID) {
		slog.Debug("Scroll target not measured yet", "id", targetID)
		return Pending, nil
	}
	slog.Debug("Scroll target absent from window", "id", targetID)
	return Missing, nil
}
