package registry

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long cached version lists stay fresh.
const DefaultTTL = time.Hour

type cacheEntry struct {
	candidates []Candidate
	fetchedAt  time.Time
}

// Cached wraps a Resolver with a time-bounded cache keyed by
// (group, artifact). The cache is read-mostly: population happens on miss
// under the same lock. Invalidate is the only external mutation and swaps
// in a fresh map wholesale so concurrent readers never observe a
// half-cleared cache.
type Cached struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCached wraps inner with a cache. A non-positive ttl falls back to
// DefaultTTL.
func NewCached(inner Resolver, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) Kind() string {
	return c.inner.Kind()
}

func (c *Cached) FetchVersions(ctx context.Context, group, artifact string) ([]Candidate, error) {
	key := group + ":" + artifact

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return cloneCandidates(entry.candidates), nil
	}

	candidates, err := c.inner.FetchVersions(ctx, group, artifact)
	if err != nil {
		// Failures are not cached; the next check retries the source.
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{candidates: cloneCandidates(candidates), fetchedAt: c.now()}
	c.mu.Unlock()

	return candidates, nil
}

// Invalidate clears the whole cache. Safe to call concurrently with
// in-flight reads.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached coordinate entries.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
