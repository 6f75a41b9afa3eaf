package mapview

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/sync/singleflight"
)

// CacheCategory selects an independent keyspace of a SharedCache.
type CacheCategory uint8

const (
	CacheIcons    CacheCategory = iota // IconPair payloads
	CacheOverlays                      // decoded background effect atlases
	CacheSprites                       // decoded creature sprite atlases
	numCacheCategories
)

// String returns the category name.
func (c CacheCategory) String() string {
	switch c {
	case CacheIcons:
		return "icons"
	case CacheOverlays:
		return "overlays"
	case CacheSprites:
		return "sprites"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// IconPair is the small and large rendition of an icon.
type IconPair struct {
	Small, Large *image.NRGBA
}

type cacheEntry struct {
	payload any
	refs    int
}

type cacheBucket struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	loads   singleflight.Group
}

// SharedCache deduplicates decoded payloads between the objects of a map by
// reference counting. An entry exists exactly as long as its count is
// positive. Each category has its own lock. Create one per map-loading
// session with NewSharedCache.
type SharedCache struct {
	buckets [numCacheCategories]cacheBucket
}

// NewSharedCache creates an empty cache.
func NewSharedCache() *SharedCache {
	c := &SharedCache{}
	for i := range c.buckets {
		c.buckets[i].entries = make(map[string]*cacheEntry)
	}
	return c
}

func (c *SharedCache) bucket(cat CacheCategory) *cacheBucket {
	if cat >= numCacheCategories {
		return nil
	}
	return &c.buckets[cat]
}

// Add registers payload under key with a count of 1 and returns true. If the
// key is already present its count is incremented, payload is discarded, and
// Add returns false.
func (c *SharedCache) Add(cat CacheCategory, key string, payload any) bool {
	b := c.bucket(cat)
	if b == nil {
		debugf("cache add: invalid %v", cat)
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		e.refs++
		return false
	}
	b.entries[key] = &cacheEntry{payload: payload, refs: 1}
	return true
}

// Retain increments the count of an existing key. It returns false and logs a
// warning if the key isn't registered.
func (c *SharedCache) Retain(cat CacheCategory, key string) bool {
	b := c.bucket(cat)
	if b == nil {
		debugf("cache retain: invalid %v", cat)
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		warnf("cache retain: %s key %q not registered", cat, key)
		return false
	}
	e.refs++
	return true
}

// Remove decrements the count of key. It returns true when the count reached
// zero and the entry was deleted.
func (c *SharedCache) Remove(cat CacheCategory, key string) bool {
	b := c.bucket(cat)
	if b == nil {
		debugf("cache remove: invalid %v", cat)
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		warnf("cache remove: %s key %q not registered", cat, key)
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(b.entries, key)
	return true
}

// Get returns the payload stored under key.
func (c *SharedCache) Get(cat CacheCategory, key string) (any, bool) {
	b := c.bucket(cat)
	if b == nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		return e.payload, true
	}
	return nil, false
}

// Contains reports whether key is registered.
func (c *SharedCache) Contains(cat CacheCategory, key string) bool {
	_, ok := c.Get(cat, key)
	return ok
}

// RefCount returns the count of key, 0 when absent.
func (c *SharedCache) RefCount(cat CacheCategory, key string) int {
	b := c.bucket(cat)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of entries in a category.
func (c *SharedCache) Len(cat CacheCategory) int {
	b := c.bucket(cat)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// GetAs returns the payload under key if it has type T.
func GetAs[T any](c *SharedCache, cat CacheCategory, key string) (T, bool) {
	v, ok := c.Get(cat, key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Acquire returns a handle to the payload under key, calling load to produce
// it when the key is absent. Concurrent acquisitions of a missing key share
// one load call. Each returned handle holds one reference.
func (c *SharedCache) Acquire(cat CacheCategory, key string, load func() (any, error)) (*CacheHandle, error) {
	b := c.bucket(cat)
	if b == nil {
		return nil, fmt.Errorf("mapview: acquire %q: invalid %v", key, cat)
	}
	b.mu.Lock()
	if e, ok := b.entries[key]; ok {
		e.refs++
		p := e.payload
		b.mu.Unlock()
		return &CacheHandle{cache: c, cat: cat, key: key, payload: p}, nil
	}
	b.mu.Unlock()

	v, err, _ := b.loads.Do(key, load)
	if err != nil {
		return nil, fmt.Errorf("mapview: load %s %q: %w", cat, key, err)
	}
	c.Add(cat, key, v)
	// Another goroutine may have added the key first; hand out what won.
	p, _ := c.Get(cat, key)
	return &CacheHandle{cache: c, cat: cat, key: key, payload: p}, nil
}

// Preload acquires every key with at most workers concurrent loads. The
// returned handles line up with keys; keys that failed to load have a nil
// handle and their errors are joined into err.
func (c *SharedCache) Preload(cat CacheCategory, keys []string, workers int, load func(key string) (any, error)) ([]*CacheHandle, error) {
	handles := make([]*CacheHandle, len(keys))
	errs := make([]error, len(keys))
	swg := sizedwaitgroup.New(max(workers, 1))
	for i, key := range keys {
		swg.Add()
		go func() {
			defer swg.Done()
			handles[i], errs[i] = c.Acquire(cat, key, func() (any, error) { return load(key) })
		}()
	}
	swg.Wait()
	return handles, errors.Join(errs...)
}

// CacheHandle owns one reference to a cache entry. Clone takes another
// reference; Release gives this handle's reference back exactly once.
type CacheHandle struct {
	cache    *SharedCache
	cat      CacheCategory
	key      string
	payload  any
	released atomic.Bool
}

// Payload returns the shared payload.
func (h *CacheHandle) Payload() any {
	return h.payload
}

// Key returns the entry key.
func (h *CacheHandle) Key() string {
	return h.key
}

// Clone returns a new handle holding its own reference, or nil if h was
// already released.
func (h *CacheHandle) Clone() *CacheHandle {
	if h.released.Load() || !h.cache.Retain(h.cat, h.key) {
		return nil
	}
	return &CacheHandle{cache: h.cache, cat: h.cat, key: h.key, payload: h.payload}
}

// Release drops the handle's reference. It returns true when this release
// deleted the entry. Further calls do nothing.
func (h *CacheHandle) Release() bool {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return false
	}
	return h.cache.Remove(h.cat, h.key)
}

// HandlePayload returns the payload of h if it has type T.
func HandlePayload[T any](h *CacheHandle) (T, bool) {
	t, ok := h.Payload().(T)
	return t, ok
}

// CacheStats summarizes a cache's contents.
type CacheStats struct {
	Entries [numCacheCategories]int
	Refs    [numCacheCategories]int
	Bytes   [numCacheCategories]uint64
}

// Stats counts entries, references and approximate decoded bytes per category.
func (c *SharedCache) Stats() CacheStats {
	var s CacheStats
	for i := range c.buckets {
		b := &c.buckets[i]
		b.mu.Lock()
		for _, e := range b.entries {
			s.Entries[i]++
			s.Refs[i] += e.refs
			s.Bytes[i] += uint64(payloadBytes(e.payload))
		}
		b.mu.Unlock()
	}
	return s
}

// String formats the stats one category per line.
func (s CacheStats) String() string {
	var sb strings.Builder
	var total uint64
	for i := CacheCategory(0); i < numCacheCategories; i++ {
		fmt.Fprintf(&sb, "%s: %d entries, %d refs (%s)\n", i, s.Entries[i], s.Refs[i], humanize.Bytes(s.Bytes[i]))
		total += s.Bytes[i]
	}
	fmt.Fprintf(&sb, "total: %s", humanize.Bytes(total))
	return sb.String()
}

func payloadBytes(p any) int {
	switch v := p.(type) {
	case *SpriteAtlas:
		return v.Bytes()
	case IconPair:
		return rasterBytes(v.Small) + rasterBytes(v.Large)
	case *IconPair:
		return rasterBytes(v.Small) + rasterBytes(v.Large)
	case *image.NRGBA:
		return rasterBytes(v)
	}
	return 0
}

func rasterBytes(img *image.NRGBA) int {
	if img == nil {
		return 0
	}
	return len(img.Pix)
}
