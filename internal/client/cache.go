package client

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type CacheKey string

const (
	ManifestListKey CacheKey = "manifests"
	ShipmentListKey CacheKey = "shipments"
)

func ShipmentKey(shipmentID string) CacheKey {
	return CacheKey("shipment:" + shipmentID)
}

func ManifestStatusKey(shipmentID string) CacheKey {
	return CacheKey("manifest-status:" + shipmentID)
}

// Mutation names a write whose success makes cached reads stale.
type Mutation string

const (
	MutationCreateShipment Mutation = "create-shipment"
	MutationUpload         Mutation = "upload"
	MutationConfirm        Mutation = "confirm"
	MutationFinalize       Mutation = "finalize"
)

type keyFunc func(shipmentID string) CacheKey

func fixedKey(k CacheKey) keyFunc {
	return func(string) CacheKey { return k }
}

// invalidationGraph lists, per mutation, the keys to drop after it succeeds.
var invalidationGraph = map[Mutation][]keyFunc{
	MutationCreateShipment: {fixedKey(ShipmentListKey)},
	MutationUpload:         {ShipmentKey, ManifestStatusKey, fixedKey(ManifestListKey)},
	MutationConfirm:        {ManifestStatusKey, fixedKey(ManifestListKey)},
	MutationFinalize:       {ShipmentKey, ManifestStatusKey, fixedKey(ManifestListKey), fixedKey(ShipmentListKey)},
}

// InvalidatedKeys returns the keys a successful mutation on shipmentID makes stale.
func InvalidatedKeys(m Mutation, shipmentID string) []CacheKey {
	fns := invalidationGraph[m]
	keys := make([]CacheKey, 0, len(fns))
	for _, fn := range fns {
		keys = append(keys, fn(shipmentID))
	}
	return keys
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// QueryCache holds the last response of each read. It is safe for concurrent use.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]cacheEntry
	now     func() time.Time
}

func NewQueryCache() *QueryCache {
	return &QueryCache{
		entries: make(map[CacheKey]cacheEntry),
		now:     time.Now,
	}
}

func (c *QueryCache) Get(key CacheKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// FetchedAt reports when key was last stored.
func (c *QueryCache) FetchedAt(key CacheKey) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.fetchedAt, ok
}

func (c *QueryCache) Set(key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, fetchedAt: c.now()}
}

func (c *QueryCache) Invalidate(keys ...CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// InvalidateFor drops every key the mutation affects and returns them.
// An empty shipmentID drops all shipment-scoped keys of the affected kinds.
func (c *QueryCache) InvalidateFor(m Mutation, shipmentID string) []CacheKey {
	keys := InvalidatedKeys(m, shipmentID)
	if shipmentID != "" {
		c.Invalidate(keys...)
		return keys
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped []CacheKey
	for _, k := range keys {
		prefix := string(k)
		for existing := range c.entries {
			if existing == k || (strings.HasSuffix(prefix, ":") && strings.HasPrefix(string(existing), prefix)) {
				delete(c.entries, existing)
				dropped = append(dropped, existing)
			}
		}
	}
	return dropped
}

func (c *QueryCache) Keys() []CacheKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]CacheKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
