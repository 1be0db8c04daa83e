package embedding

import (
	"sync"
	"time"
)

// cacheKey is the content address of a cached vector: the model that
// produced it plus the exact input text. Different models never share
// entries even for identical text.
type cacheKey struct {
	model string
	text  string
}

// Entry is a cached embedding with its insertion time.
type Entry struct {
	// Vector is the embedding. Callers must treat it as read-only.
	Vector []float32
	// InsertedAt is when the entry was written.
	InsertedAt time.Time
}

// Cache is a concurrent-safe, content-addressed embedding cache. A miss is
// always safe — callers fall through to the provider. No eviction policy is
// applied; the cache lives for the process lifetime.
type Cache struct {
	// mu guards entries. Reads dominate, so an RWMutex keeps concurrent
	// queries cheap.
	mu      sync.RWMutex
	entries map[cacheKey]Entry
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Entry)}
}

// Get returns the cached vector for (model, text), or false on a miss.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{model: model, text: text}]
	if !ok {
		return nil, false
	}
	return e.Vector, true
}

// Put stores a vector for (model, text), overwriting any previous entry.
func (c *Cache) Put(model, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{model: model, text: text}] = Entry{
		Vector:     vector,
		InsertedAt: time.Now(),
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
