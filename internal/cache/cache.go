package cache

import (
	"fmt"
	"sync"
	"time"

	"steam-price-api/internal/models"
)

// Entry holds one cached price payload with its storage time
type Entry struct {
	Data     *models.PriceOverview
	StoredAt time.Time
}

// Stats summarizes cache contents
type Stats struct {
	TotalEntries   int     `json:"total_entries"`
	ValidEntries   int     `json:"valid_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	TTLMinutes     float64 `json:"ttl_minutes"`
}

// PriceCache caches the last successful price response per (item, currency)
// key for a fixed TTL. Entries past the TTL read as misses even before they
// are physically purged.
type PriceCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a price cache with the given TTL
func New(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// Key builds the cache key for an item and currency pair
func Key(marketHashName string, currency int) string {
	return fmt.Sprintf("%s_%d", marketHashName, currency)
}

// Get returns the cached payload for the key, or nil when missing or expired
func (priceCache *PriceCache) Get(key string) *models.PriceOverview {
	priceCache.mu.RLock()
	defer priceCache.mu.RUnlock()

	entry, exists := priceCache.entries[key]
	if !exists {
		return nil
	}
	if priceCache.now().Sub(entry.StoredAt) >= priceCache.ttl {
		return nil
	}
	return entry.Data
}

// Put stores a successful payload for the key
func (priceCache *PriceCache) Put(key string, data *models.PriceOverview) {
	priceCache.mu.Lock()
	defer priceCache.mu.Unlock()

	priceCache.entries[key] = Entry{
		Data:     data,
		StoredAt: priceCache.now(),
	}
}

// Clear removes all entries
func (priceCache *PriceCache) Clear() {
	priceCache.mu.Lock()
	defer priceCache.mu.Unlock()

	priceCache.entries = make(map[string]Entry)
}

// Stats reports entry counts split into valid and expired
func (priceCache *PriceCache) Stats() Stats {
	priceCache.mu.RLock()
	defer priceCache.mu.RUnlock()

	now := priceCache.now()
	valid := 0
	for _, entry := range priceCache.entries {
		if now.Sub(entry.StoredAt) < priceCache.ttl {
			valid++
		}
	}

	return Stats{
		TotalEntries:   len(priceCache.entries),
		ValidEntries:   valid,
		ExpiredEntries: len(priceCache.entries) - valid,
		TTLMinutes:     priceCache.ttl.Minutes(),
	}
}

// SetNowFunc overrides the clock, for tests
func (priceCache *PriceCache) SetNowFunc(now func() time.Time) {
	priceCache.now = now
}
