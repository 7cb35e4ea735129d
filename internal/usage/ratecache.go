// ABOUTME: Thread-safe TTL cache for model cost rate lookups
// ABOUTME: Keeps the rate table collaborator off the hot path of every turn

package usage

import (
	"sync"
	"time"
)

// rateEntry stores a cached rate and when it was fetched.
type rateEntry struct {
	rate      Rate
	fetchedAt time.Time
}

// rateCache is a TTL-based cache for model rate lookups. Entries expire
// after the TTL; a background goroutine sweeps expired entries so the
// map does not grow unbounded across many models.
type rateCache struct {
	mu     sync.RWMutex
	rates  map[string]rateEntry
	ttl    time.Duration
	done   chan struct{}
	closed bool
}

func newRateCache(ttl time.Duration) *rateCache {
	c := &rateCache{
		rates: make(map[string]rateEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// get returns a cached rate if present and not expired.
func (c *rateCache) get(model string) (Rate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.rates[model]
	if !ok || time.Since(entry.fetchedAt) >= c.ttl {
		return Rate{}, false
	}
	return entry.rate, true
}

// put stores a rate with the current timestamp.
func (c *rateCache) put(model string, rate Rate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[model] = rateEntry{rate: rate, fetchedAt: time.Now()}
}

// cleanup periodically removes expired entries until Close is called.
func (c *rateCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			for model, entry := range c.rates {
				if time.Since(entry.fetchedAt) >= c.ttl {
					delete(c.rates, model)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (c *rateCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
