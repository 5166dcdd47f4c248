// Package cache implements the dual-pool TTL+LRU response cache: the
// CACHE layer. Grounded on the teacher's query_cache.go (QueryCache,
// CacheEntry, QueryCacheStats, the entries map + accessOrder LRU list +
// metricIndex-style prefix invalidation), simplified from the teacher's
// pluggable eviction-policy design (lru/lfu/ttl) to the single LRU+TTL
// policy spec §4.4 specifies, and adapted to store pre-serialized response
// bytes rather than query results.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
)

// entry is one cached response body plus its bookkeeping.
type entry struct {
	key       string
	canonical string // pre-hash request key, so Invalidate can substring-match
	body      []byte // snappy-compressed
	expiresAt time.Time
	listElem  *list.Element
}

// Pool is a size-bounded, TTL-expiring, LRU-evicting cache keyed by
// canonicalized request key. Two independent Pool instances exist per spec
// §4.4 (an "api" pool and a "stats" pool); neither is a package-level
// singleton — both are constructed explicitly in cmd/server/main.go and
// threaded through the HTTP layer, the redesign the teacher's closure-
// over-package-globals pattern calls for.
type Pool struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*entry
	order    *list.List // front = most recently used

	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

// New constructs a Pool with the given capacity and default TTL applied to
// every Put.
func New(capacity int, ttl time.Duration) *Pool {
	return &Pool{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		order:    list.New(),
	}
}

// Get returns the cached, decompressed body for key, or ok=false on a miss.
// An expired entry found on read is deleted and counted as a miss, never
// returned — the cache is purely advisory and a miss is never an error.
func (p *Pool) Get(key string) (body []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, found := p.entries[key]
	if !found {
		p.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		p.removeLocked(e)
		p.misses.Add(1)
		return nil, false
	}

	p.order.MoveToFront(e.listElem)
	p.hits.Add(1)

	decompressed, err := snappy.Decode(nil, e.body)
	if err != nil {
		// Corrupt cache entry: treat as a miss rather than fail the request.
		p.removeLocked(e)
		return nil, false
	}
	return decompressed, true
}

// Put stores body under key with the pool's default TTL, evicting the
// least-recently-used entry first if the pool is at capacity. canonical is
// the pre-hash request key (method+path+sorted query) Invalidate matches
// substrings against — key itself is a fixed-width hash and can never be
// substring-matched against a human-readable dataset id. A duplicate Put on
// a miss is allowed and idempotent.
func (p *Pool) Put(key, canonical string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	compressed := snappy.Encode(nil, body)

	if existing, found := p.entries[key]; found {
		existing.body = compressed
		existing.canonical = canonical
		existing.expiresAt = time.Now().Add(p.ttl)
		p.order.MoveToFront(existing.listElem)
		return
	}

	for len(p.entries) >= p.capacity && p.capacity > 0 {
		p.evictOldestLocked()
	}

	e := &entry{key: key, canonical: canonical, body: compressed, expiresAt: time.Now().Add(p.ttl)}
	e.listElem = p.order.PushFront(e)
	p.entries[key] = e
}

// Invalidate removes every entry whose canonical (pre-hash) key contains
// substr, used for dataset-scoped flushes (e.g.
// /api/cache/clear/{datasetId}). Returns the number of entries removed.
func (p *Pool) Invalidate(substr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed int
	for _, e := range p.entries {
		if strings.Contains(e.canonical, substr) {
			p.removeLocked(e)
			removed++
		}
	}
	return removed
}

// InvalidateAll clears every entry in the pool.
func (p *Pool) InvalidateAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	p.entries = make(map[string]*entry)
	p.order.Init()
	return n
}

// Stats reports hit/miss/size/capacity/hit-rate diagnostics.
type Stats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Evictions int64   `json:"evictions"`
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	size := len(p.entries)
	p.mu.Unlock()

	hits := p.hits.Load()
	misses := p.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  p.capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate,
		Evictions: p.evictions.Load(),
	}
}

func (p *Pool) evictOldestLocked() {
	oldest := p.order.Back()
	if oldest == nil {
		return
	}
	p.removeLocked(oldest.Value.(*entry))
	p.evictions.Add(1)
}

func (p *Pool) removeLocked(e *entry) {
	p.order.Remove(e.listElem)
	delete(p.entries, e.key)
}
