package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type linkEntry struct {
	url       string
	formatID  string
	createdAt time.Time
}

// LinkCache bridges the two halves of a download request: the message
// carrying the URL and the callback carrying the format choice. Callback
// payloads are size-limited, so the URL stays here keyed by a short token.
type LinkCache struct {
	mu         sync.Mutex
	entries    map[string]*linkEntry
	ttl        time.Duration
	maxEntries int
}

func NewLinkCache(ttl time.Duration, maxEntries int) *LinkCache {
	return &LinkCache{
		entries:    make(map[string]*linkEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Store saves a URL and returns the token to hand out in callback data.
// Expired entries are swept and the oldest entries evicted first so the
// insert never pushes the cache over its cap.
func (c *LinkCache) Store(url string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()
	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	token := newToken(c.entries)
	c.entries[token] = &linkEntry{url: url, createdAt: time.Now()}
	return token
}

func (c *LinkCache) Get(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()
	e, ok := c.entries[token]
	if !ok {
		return "", false
	}
	return e.url, true
}

func (c *LinkCache) SetFormat(token, formatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()
	e, ok := c.entries[token]
	if !ok {
		return false
	}
	e.formatID = formatID
	return true
}

func (c *LinkCache) GetFormat(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpired()
	e, ok := c.entries[token]
	if !ok || e.formatID == "" {
		return "", false
	}
	return e.formatID, true
}

// Remove deletes an entry. Removing an absent token is fine: both the
// success and failure paths of a download call this.
func (c *LinkCache) Remove(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
}

func (c *LinkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepExpired and evictOldest expect c.mu held.
func (c *LinkCache) sweepExpired() {
	cutoff := time.Now().Add(-c.ttl)
	removed := 0
	for token, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, token)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[Cache] Swept %d expired entries", removed)
	}
}

func (c *LinkCache) evictOldest() {
	var oldest string
	var oldestAt time.Time
	for token, e := range c.entries {
		if oldest == "" || e.createdAt.Before(oldestAt) {
			oldest = token
			oldestAt = e.createdAt
		}
	}
	if oldest != "" {
		delete(c.entries, oldest)
	}
}

func newToken(taken map[string]*linkEntry) string {
	for {
		token := uuid.NewString()[:8]
		if _, exists := taken[token]; !exists {
			return token
		}
	}
}
