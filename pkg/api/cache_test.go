package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestResponseCacheHitAndExpiry checks a second lookup within the TTL never
// runs the loader and an expired entry is reloaded.
func TestResponseCacheHitAndExpiry(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Unix(1000, 0)
	)
	c := &ResponseCache{
		ttl:     time.Minute,
		lookups: make(chan cacheLookup),
		done:    make(chan struct{}),
		clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	}
	go c.serve()
	defer c.Close()

	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		return []byte("layers"), nil
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		body, err := c.Get(ctx, "layers", load)
		if err != nil || string(body) != "layers" {
			t.Fatalf("Get %d = %q, %v", i, body, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader ran %d times within the TTL, want 1", calls)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if _, err := c.Get(ctx, "layers", load); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if calls != 2 {
		t.Errorf("loader ran %d times after expiry, want 2", calls)
	}
}

// TestResponseCacheLoadErrors checks failed loads are returned but never
// cached, so the next lookup tries again.
func TestResponseCacheLoadErrors(t *testing.T) {
	c := NewResponseCache(time.Minute)
	defer c.Close()

	boom := errors.New("backend down")
	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []byte("ok"), nil
	}
	ctx := context.Background()

	if _, err := c.Get(ctx, "layers", load); !errors.Is(err, boom) {
		t.Fatalf("first Get error = %v, want the load error", err)
	}
	body, err := c.Get(ctx, "layers", load)
	if err != nil || string(body) != "ok" {
		t.Fatalf("second Get = %q, %v", body, err)
	}
	if calls != 2 {
		t.Errorf("loader ran %d times, want 2", calls)
	}
}

// TestResponseCacheDisabled checks a nil cache reports the dedicated error
// so handlers can fall back to loading directly.
func TestResponseCacheDisabled(t *testing.T) {
	var c *ResponseCache
	if _, err := c.Get(context.Background(), "layers", nil); !errors.Is(err, errCacheDisabled) {
		t.Errorf("Get on nil cache = %v, want errCacheDisabled", err)
	}
	if NewResponseCache(0) != nil {
		t.Error("NewResponseCache(0) built a cache, want nil")
	}
	c.Close()
}
