package api

import (
	"context"
	"testing"
	"time"
)

// TestRateLimiterHeavyCooldown checks the second heavy request from one IP
// waits out the cooldown left by the first.
func TestRateLimiterHeavyCooldown(t *testing.T) {
	l := NewRateLimiter(150 * time.Millisecond)
	ctx := context.Background()

	p, err := l.Acquire(ctx, "10.0.0.1", RequestHeavy)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	p.Release()

	start := time.Now()
	p, err = l.Acquire(ctx, "10.0.0.1", RequestHeavy)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	p.Release()
	if waited := time.Since(start); waited < 100*time.Millisecond {
		t.Errorf("second heavy request waited %v, want at least most of the cooldown", waited)
	}
}

// TestRateLimiterIndependentIPs checks one client's cooldown never delays
// another client.
func TestRateLimiterIndependentIPs(t *testing.T) {
	l := NewRateLimiter(500 * time.Millisecond)
	ctx := context.Background()

	p, err := l.Acquire(ctx, "10.0.0.1", RequestHeavy)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release()

	start := time.Now()
	p, err = l.Acquire(ctx, "10.0.0.2", RequestHeavy)
	if err != nil {
		t.Fatalf("Acquire for the second IP: %v", err)
	}
	p.Release()
	if waited := time.Since(start); waited > 250*time.Millisecond {
		t.Errorf("unrelated IP waited %v", waited)
	}
}

// TestRateLimiterGeneralRequests checks cheap requests never pay the heavy
// cooldown and double releases are harmless.
func TestRateLimiterGeneralRequests(t *testing.T) {
	l := NewRateLimiter(500 * time.Millisecond)
	ctx := context.Background()

	p, err := l.Acquire(ctx, "10.0.0.3", RequestHeavy)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release()
	p.Release()

	start := time.Now()
	p, err = l.Acquire(ctx, "10.0.0.3", RequestGeneral)
	if err != nil {
		t.Fatalf("general Acquire: %v", err)
	}
	p.Release()
	if waited := time.Since(start); waited > 250*time.Millisecond {
		t.Errorf("general request waited %v", waited)
	}
}

// TestRateLimiterCancelledContext checks a dead context surfaces as an error
// instead of a permit.
func TestRateLimiterCancelledContext(t *testing.T) {
	l := NewRateLimiter(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Acquire(ctx, "10.0.0.4", RequestGeneral); err == nil {
		t.Error("Acquire with a cancelled context returned a permit")
	}
}
