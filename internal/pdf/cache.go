package pdf

import (
	"container/list"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// DefaultCachePages is the run cache capacity used when none is configured
const DefaultCachePages = 256

type pageKey struct {
	path string
	page int
}

func (k pageKey) String() string {
	return fmt.Sprintf("%s#%d", k.path, k.page)
}

type cacheEntry struct {
	key  pageKey
	runs []pid.TextRun
}

// RunCache is a least-recently-used cache of page text runs keyed by file
// and page. Concurrent misses on the same page trigger a single read.
type RunCache struct {
	mu      sync.Mutex
	limit   int
	entries map[pageKey]*list.Element
	order   *list.List // front is most recently used
	hits    int64
	misses  int64
	group   singleflight.Group
}

// NewRunCache creates a cache holding at most limit pages
func NewRunCache(limit int) *RunCache {
	if limit <= 0 {
		limit = DefaultCachePages
	}
	return &RunCache{
		limit:   limit,
		entries: make(map[pageKey]*list.Element),
		order:   list.New(),
	}
}

// Load returns the cached runs for (path, page), calling fill on a miss.
// Errors are not cached.
func (c *RunCache) Load(path string, page int, fill func() ([]pid.TextRun, error)) ([]pid.TextRun, error) {
	key := pageKey{path: path, page: page}
	if runs, ok := c.get(key); ok {
		return slices.Clone(runs), nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if runs, ok := c.peek(key); ok {
			return runs, nil
		}
		runs, err := fill()
		if err != nil {
			return nil, err
		}
		c.put(key, runs)
		return runs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]pid.TextRun)), nil
}

// Invalidate drops every cached page of path and returns how many were removed
func (c *RunCache) Invalidate(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.entries {
		if key.path != path {
			continue
		}
		c.order.Remove(el)
		delete(c.entries, key)
		removed++
	}
	return removed
}

// Len returns the number of cached pages
func (c *RunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports hit counts and occupancy
func (c *RunCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     len(c.entries),
		Capacity: c.limit,
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		stats.HitRate = 100 * float64(c.hits) / float64(lookups)
	}
	return stats
}

func (c *RunCache) get(key pageKey) ([]pid.TextRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, found := c.entries[key]
	if !found {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).runs, true
}

func (c *RunCache) peek(key pageKey) ([]pid.TextRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, found := c.entries[key]; found {
		return el.Value.(*cacheEntry).runs, true
	}
	return nil, false
}

func (c *RunCache) put(key pageKey, runs []pid.TextRun) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.entries[key]; found {
		el.Value.(*cacheEntry).runs = runs
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, runs: runs})

	for len(c.entries) > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// CacheStats is a snapshot of RunCache usage
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Size     int     `json:"current_size"`
	Capacity int     `json:"max_capacity"`
}
