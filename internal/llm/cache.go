package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// cachingClient serves repeated prompts from a TTL cache. Identical prompts
// come up when the same message is reprocessed, so the cache saves the
// round-trip without changing results.
type cachingClient struct {
	inner Client
	cache *responseCache
}

func (c *cachingClient) Infer(ctx context.Context, prompt string) (string, error) {
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(prompt)))
	if response, found := c.cache.get(key); found {
		return response, nil
	}

	response, err := c.inner.Infer(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.set(key, response)
	return response, nil
}

// cacheEntry represents a cached inference response.
type cacheEntry struct {
	expiry   time.Time
	response string
}

// responseCache provides thread-safe caching for inference responses.
type responseCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// newResponseCache creates a new cache with the specified TTL.
func newResponseCache(ttl time.Duration) *responseCache {
	if ttl == 0 {
		ttl = 15 * time.Minute // Default TTL
	}

	cache := &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// get retrieves a response from the cache if it exists and hasn't expired.
func (c *responseCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return "", false
	}

	if time.Now().After(entry.expiry) {
		return "", false
	}

	return entry.response, true
}

// set stores a response in the cache.
func (c *responseCache) set(key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		response: response,
		expiry:   time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *responseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (c *responseCache) Close() {
	close(c.stopCh)
}
