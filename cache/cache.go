// Package cache provides a content-addressed, two-tier cache for
// expensive derived values such as embedding vectors. The fast tier is
// a fixed-capacity in-process LRU; the durable tier is the backing
// store, written through best-effort so a persistence failure never
// fails the caller.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/embermind/recall/core"
	"github.com/embermind/recall/storage"
)

// Stats are the observability counters exposed by a Cache.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Computes  uint64
}

// Cache is a two-tier cache keyed by normalized content hash.
type Cache[V any] struct {
	fast    *lru.Cache[string, V]
	backend storage.Backend
	encode  func(V) ([]byte, error)
	decode  func([]byte) (V, error)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	computes  atomic.Uint64
}

// New creates a cache with the given fast-tier capacity. backend may
// be nil for a fast-tier-only cache; encode/decode are required when a
// backend is set.
func New[V any](capacity int, backend storage.Backend, encode func(V) ([]byte, error), decode func([]byte) (V, error)) (*Cache[V], error) {
	c := &Cache[V]{
		backend: backend,
		encode:  encode,
		decode:  decode,
	}

	fast, err := lru.NewWithEvict(capacity, func(string, V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.fast = fast
	return c, nil
}

// Key derives the deterministic cache key for an input: trimmed,
// case-folded, then SHA-256 hashed. Identical inputs always hit the
// same entry regardless of access path.
func Key(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get looks the input up in the fast tier, then the durable tier. A
// fast-tier hit promotes the entry to most-recently-used; a durable
// hit repopulates the fast tier.
func (c *Cache[V]) Get(ctx context.Context, input string) (V, bool) {
	key := Key(input)

	if v, ok := c.fast.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}

	if v, ok := c.durableGet(ctx, key); ok {
		c.hits.Add(1)
		c.fast.Add(key, v)
		return v, true
	}

	c.misses.Add(1)
	var zero V
	return zero, false
}

// Put stores the value in both tiers. The durable write is
// best-effort: failure only forfeits cross-restart reuse.
func (c *Cache[V]) Put(ctx context.Context, input string, v V) {
	key := Key(input)
	c.fast.Add(key, v)
	c.durablePut(ctx, key, v)
}

// GetOrCompute returns the cached value for input, invoking compute
// only when both tiers miss. The computed value is written back to
// both tiers.
func (c *Cache[V]) GetOrCompute(ctx context.Context, input string, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, input); ok {
		return v, nil
	}

	c.computes.Add(1)
	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Put(ctx, input, v)
	return v, nil
}

// GetOrComputeBatch resolves a list of inputs, invoking compute once
// with only the subset that missed both tiers. Results are returned in
// input order.
func (c *Cache[V]) GetOrComputeBatch(ctx context.Context, inputs []string, compute func(context.Context, []string) ([]V, error)) ([]V, error) {
	out := make([]V, len(inputs))
	var (
		missing    []string
		missingIdx []int
	)

	for i, input := range inputs {
		if v, ok := c.Get(ctx, input); ok {
			out[i] = v
			continue
		}
		missing = append(missing, input)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	c.computes.Add(1)
	computed, err := compute(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missing) {
		return nil, &core.ValidationError{Field: "compute", Reason: "result length does not match input length"}
	}

	for i, v := range computed {
		out[missingIdx[i]] = v
		c.Put(ctx, missing[i], v)
	}
	return out, nil
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Computes:  c.computes.Load(),
	}
}

// Len reports the current fast-tier size.
func (c *Cache[V]) Len() int {
	return c.fast.Len()
}

func (c *Cache[V]) durableGet(ctx context.Context, key string) (V, bool) {
	var zero V
	if c.backend == nil || c.decode == nil {
		return zero, false
	}

	rec, found, err := c.backend.Get(ctx, storage.KindCacheEntry, key)
	if err != nil {
		log.Printf("[CACHE] durable read failed for %s: %v", key[:8], err)
		return zero, false
	}
	if !found {
		return zero, false
	}

	v, err := c.decode(rec.Data)
	if err != nil {
		log.Printf("[CACHE] decode failed for %s: %v", key[:8], err)
		return zero, false
	}
	return v, true
}

func (c *Cache[V]) durablePut(ctx context.Context, key string, v V) {
	if c.backend == nil || c.encode == nil {
		return
	}

	data, err := c.encode(v)
	if err != nil {
		log.Printf("[CACHE] encode failed for %s: %v", key[:8], err)
		return
	}

	err = c.backend.Put(ctx, storage.Record{
		Kind: storage.KindCacheEntry,
		ID:   key,
		Data: data,
	})
	if err != nil {
		// Degrade to fast-tier-only for this entry.
		log.Printf("[CACHE] durable write failed for %s: %v", key[:8], err)
	}
}
