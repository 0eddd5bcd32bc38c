package lock

import (
	"context"
	"errors"
	"testing"
)

func TestExclusiveSingleHolder(t *testing.T) {
	ctx := context.Background()
	guard := NewExclusive("mount point")

	first, err := guard.AcquireLock(ctx, "a.bin")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := guard.AcquireLock(ctx, "b.bin"); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire should fail with ErrHeld, got %v", err)
	}

	if got := guard.Holder(); got != "a.bin" {
		t.Errorf("Holder() = %q, want %q", got, "a.bin")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	second, err := guard.AcquireLock(ctx, "b.bin")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	defer second.Release()

	// a stale handle must not free the new holder
	_ = first.Release()
	if got := guard.Holder(); got != "b.bin" {
		t.Errorf("Holder() after stale release = %q, want %q", got, "b.bin")
	}
}

func TestExclusiveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	guard := NewExclusive("mount point")
	if _, err := guard.AcquireLock(ctx, "a.bin"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if guard.Holder() != "" {
		t.Error("cancelled acquire must not hold the resource")
	}
}
