package openweather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedLookup wraps a WeatherLookup with an in-memory LRU cache whose
// entries expire after a fixed TTL.
type CachedLookup struct {
	inner   domain.WeatherLookup
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a weather lookup.
func NewCachedLookup(inner domain.WeatherLookup, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

// CurrentWeather serves from cache when a fresh entry exists for the
// coordinates rounded to 4 decimals (about 11 m). Errors are never cached.
func (c *CachedLookup) CurrentWeather(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if w, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return w, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()
	w, err := c.inner.CurrentWeather(ctx, lat, lon)
	if err != nil {
		return w, err
	}
	c.cache.put(key, w)
	return w, nil
}

// lruCache is a thread-safe LRU cache of weather results with per-entry expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.Weather
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Weather, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Weather{}, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.remove(e)
		delete(c.entries, key)
		return domain.Weather{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Weather) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
