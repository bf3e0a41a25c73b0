package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/askweather/askweather/internal/pipeline"
)

// Clock supplies the current time; swapped for a fake in tests.
type Clock func() time.Time

type entry struct {
	bundle    pipeline.WeatherBundle
	expiresAt time.Time
}

// TTLCache is a concurrency-safe in-memory weather cache. Entries expire a
// fixed TTL after the write; expiry is checked lazily on read, so no
// background eviction is required for correctness. Keys round coordinates
// to two decimal places.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]entry
}

// DefaultTTL matches the upstream forecast refresh cadence.
const DefaultTTL = 600 * time.Second

// New creates a cache with the given TTL, using the wall clock.
// A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *TTLCache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a cache with an injectable clock.
func NewWithClock(ttl time.Duration, now Clock) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

func cacheKey(lat, lon float64, startDate, endDate, units string) string {
	return fmt.Sprintf("%.2f,%.2f,%s,%s,%s", lat, lon, startDate, endDate, units)
}

// Get returns the cached bundle for the given parameters. Expired entries
// are deleted on sight and reported as a miss.
func (c *TTLCache) Get(lat, lon float64, startDate, endDate, units string) (pipeline.WeatherBundle, bool) {
	key := cacheKey(lat, lon, startDate, endDate, units)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return pipeline.WeatherBundle{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return pipeline.WeatherBundle{}, false
	}
	return e.bundle, true
}

// Set stores a bundle, stamping its expiry from the write time. Writes are
// atomic per key; a concurrent write to the same key is last-write-wins.
func (c *TTLCache) Set(lat, lon float64, startDate, endDate, units string, bundle pipeline.WeatherBundle) {
	key := cacheKey(lat, lon, startDate, endDate, units)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{bundle: bundle, expiresAt: c.now().Add(c.ttl)}
}

// Sweep removes every expired entry and reports how many were dropped.
// Bounds memory for keys that are never read again; lazy expiry on Get
// remains the correctness mechanism.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Len reports the current number of entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
