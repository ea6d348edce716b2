package cache

import (
	"sync"
	"time"
)

// Quote is the latest observed price for a canonical symbol. Quotes are
// immutable; a refresh replaces the whole entry.
type Quote struct {
	Symbol     string    `json:"symbol"`
	FeedID     string    `json:"feed_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

type entry struct {
	quote     Quote
	expiresAt time.Time
}

// QuoteCache holds the freshest quote per symbol for a fixed TTL. Expired
// entries read as misses so stale data is never served silently. Safe for
// many concurrent readers and writers.
type QuoteCache struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]entry
}

func New(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		ttl:   ttl,
		items: make(map[string]entry),
	}
}

// Get returns the cached quote for symbol, or ok=false on miss or expiry.
func (c *QuoteCache) Get(symbol string) (Quote, bool) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return Quote{}, false
	}
	return e.quote, true
}

// Put stores a quote, replacing any previous entry for the symbol.
func (c *QuoteCache) Put(q Quote) {
	c.mu.Lock()
	c.items[q.Symbol] = entry{quote: q, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// PutAll stores a batch of quotes under a single lock.
func (c *QuoteCache) PutAll(quotes []Quote) {
	expiry := time.Now().Add(c.ttl)
	c.mu.Lock()
	for _, q := range quotes {
		c.items[q.Symbol] = entry{quote: q, expiresAt: expiry}
	}
	c.mu.Unlock()
}

// Purge drops expired entries. Called opportunistically by the broadcast
// loop; correctness does not depend on it since Get checks expiry.
func (c *QuoteCache) Purge() {
	now := time.Now()
	c.mu.Lock()
	for sym, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, sym)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
