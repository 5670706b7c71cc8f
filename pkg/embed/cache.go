package embed

import (
	"container/list"
	"context"
	"sync"
)

// keyPrefixLen is how much of the input text is used as the cache
// key, per the configured cache keying rule.
const keyPrefixLen = 100

// CachedEmbedder wraps an Embedder with a bounded LRU cache keyed on
// the first keyPrefixLen characters of the input. Unlike the
// teacher's unbounded map-backed cache, entries are evicted once the
// configured size is exceeded.
type CachedEmbedder struct {
	mu       sync.Mutex
	embedder Embedder
	size     int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key string
	vec []float32
}

// DefaultCacheSize matches the configured default of 10000 entries.
const DefaultCacheSize = 10000

// NewCachedEmbedder wraps embedder with an LRU cache of the given
// size. size <= 0 falls back to DefaultCacheSize.
func NewCachedEmbedder(embedder Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedEmbedder{
		embedder: embedder,
		size:     size,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func cacheKey(text string) string {
	if len(text) <= keyPrefixLen {
		return text
	}
	return text[:keyPrefixLen]
}

// Embed returns a cached embedding if present, otherwise computes and
// caches it, evicting the least recently used entry if over size.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		vec := elem.Value.(*cacheEntry).vec
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).vec, nil
	}

	elem := c.order.PushFront(&cacheEntry{key: key, vec: vec})
	c.entries[key] = elem

	for c.order.Len() > c.size {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	return vec, nil
}

// Dimensions returns the embedding width.
func (c *CachedEmbedder) Dimensions() int { return c.embedder.Dimensions() }

// Len returns the current number of cached entries.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
