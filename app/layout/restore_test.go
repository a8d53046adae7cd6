package layout

import (
	"context"
	"testing"
	"time"
)

func mapLookup(entries map[string]Entry) Lookup {
	return func(id string) (Entry, bool) {
		e, ok := entries[id]
		return e, ok
	}
}

func TestAttemptRestore_FoundImmediately(t *testing.T) {
	entries := map[string]Entry{"42": {ID: "42", Offset: 1337}}

	var applied float64
	outcome, err := AttemptRestore(context.Background(), "42", mapLookup(entries), nil,
		func(offset float64) { applied = offset },
		RestoreOptions{MaxAttempts: 3, Delay: time.Millisecond})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome != Restored {
		t.Errorf("Expected Restored, got %s", outcome)
	}
	if applied != 1337 {
		t.Errorf("Expected scroll applied at 1337, got %v", applied)
	}
}

func TestAttemptRestore_FoundAfterPolling(t *testing.T) {
	entries := map[string]Entry{}
	polls := 0
	lookup := func(id string) (Entry, bool) {
		polls++
		if polls == 3 {
			entries["42"] = Entry{ID: "42", Offset: 200}
		}
		e, ok := entries[id]
		return e, ok
	}

	var applied float64
	outcome, err := AttemptRestore(context.Background(), "42", lookup, nil,
		func(offset float64) { applied = offset },
		RestoreOptions{MaxAttempts: 5, Delay: time.Millisecond})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome != Restored {
		t.Errorf("Expected Restored after polling, got %s", outcome)
	}
	if applied != 200 {
		t.Errorf("Expected offset 200, got %v", applied)
	}
	if polls != 3 {
		t.Errorf("Expected 3 polls, got %d", polls)
	}
}

func TestAttemptRestore_PendingWhenInWindow(t *testing.T) {
	outcome, err := AttemptRestore(context.Background(), "42", mapLookup(nil),
		func(id string) bool { return id == "42" },
		func(float64) { t.Error("apply must not be called") },
		RestoreOptions{MaxAttempts: 2, Delay: time.Millisecond})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome != Pending {
		t.Errorf("Expected Pending for an unmeasured in-window target, got %s", outcome)
	}
}

func TestAttemptRestore_MissingWhenAbsent(t *testing.T) {
	outcome, err := AttemptRestore(context.Background(), "42", mapLookup(nil),
		func(id string) bool { return false },
		func(float64) { t.Error("apply must not be called") },
		RestoreOptions{MaxAttempts: 2, Delay: time.Millisecond})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome != Missing {
		t.Errorf("Expected Missing for an absent target, got %s", outcome)
	}
}

func TestAttemptRestore_Idempotent(t *testing.T) {
	entries := map[string]Entry{"42": {ID: "42", Offset: 640}}
	opts := RestoreOptions{MaxAttempts: 3, Delay: time.Millisecond}

	var first, second float64
	o1, _ := AttemptRestore(context.Background(), "42", mapLookup(entries), nil, func(off float64) { first = off }, opts)
	o2, _ := AttemptRestore(context.Background(), "42", mapLookup(entries), nil, func(off float64) { second = off }, opts)

	if o1 != o2 {
		t.Errorf("Outcomes differ across identical calls: %s vs %s", o1, o2)
	}
	if first != second {
		t.Errorf("Scroll targets differ across identical calls: %v vs %v", first, second)
	}
}

func TestAttemptRestore_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := AttemptRestore(ctx, "42", mapLookup(nil),
		func(string) bool { return true },
		func(float64) {},
		RestoreOptions{MaxAttempts: 5, Delay: 10 * time.Millisecond})

	if err == nil {
		t.Fatal("Expected context error")
	}
	if outcome != Pending {
		t.Errorf("A cancelled poll should report Pending, got %s", outcome)
	}
}
