package api

import (
	"context"
	"errors"
	"time"
)

var (
	errCacheDisabled = errors.New("response cache disabled")
	errCacheStopped  = errors.New("response cache stopped")
)

// ResponseCache memoizes rendered payloads, keyed by endpoint, for a short
// time.  The layer listing is its main customer: map clients poll it after
// every import, and re-rendering the summary JSON per poll would hit the
// database for nothing.  A single goroutine owns the entry map and lookups
// travel over a channel, the same ownership shape the import logger uses.
type ResponseCache struct {
	ttl     time.Duration
	lookups chan cacheLookup
	done    chan struct{}
	clock   func() time.Time
}

// cacheLookup asks the owner goroutine for one key, bringing along the
// loader to run on a miss.
type cacheLookup struct {
	ctx   context.Context
	key   string
	load  func(context.Context) ([]byte, error)
	reply chan cacheResult
}

type cacheResult struct {
	body []byte
	err  error
}

// NewResponseCache starts the owner goroutine.  A non-positive ttl returns
// nil, which every method treats as caching switched off.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		return nil
	}
	c := &ResponseCache{
		ttl:     ttl,
		lookups: make(chan cacheLookup),
		done:    make(chan struct{}),
		clock:   time.Now,
	}
	go c.serve()
	return c
}

// Close stops the owner goroutine.  Calling it twice is harmless.
func (c *ResponseCache) Close() {
	if c == nil {
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Get returns the cached body for key, running load on a miss or after
// expiry.  Failed loads are not cached.  Hits come back as a fresh copy so
// handlers may slice and modify the result freely.
func (c *ResponseCache) Get(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return nil, errCacheDisabled
	}
	lk := cacheLookup{ctx: ctx, key: key, load: load, reply: make(chan cacheResult, 1)}
	select {
	case c.lookups <- lk:
	case <-c.done:
		return nil, errCacheStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-lk.reply:
		return res.body, res.err
	case <-c.done:
		return nil, errCacheStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serve owns the entry map.  Stale entries are dropped on access, so the
// cache needs no sweeper timer.
func (c *ResponseCache) serve() {
	type entry struct {
		body  []byte
		until time.Time
	}
	entries := make(map[string]entry)

	for {
		select {
		case <-c.done:
			return
		case lk := <-c.lookups:
			if e, ok := entries[lk.key]; ok && c.clock().Before(e.until) {
				lk.reply <- cacheResult{body: append([]byte(nil), e.body...)}
				continue
			}
			body, err := lk.load(lk.ctx)
			if err != nil {
				delete(entries, lk.key)
				lk.reply <- cacheResult{err: err}
				continue
			}
			entries[lk.key] = entry{body: append([]byte(nil), body...), until: c.clock().Add(c.ttl)}
			lk.reply <- cacheResult{body: body}
		}
	}
}
