// Package storage defines the durable backing-store boundary. The
// engine never assumes a specific storage technology, only this
// key/value-plus-filter contract.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Kind partitions records by entity type.
type Kind string

const (
	KindMemory      Kind = "memory"
	KindAssociation Kind = "association"
	KindCacheEntry  Kind = "cache-entry"
)

// Attrs are the indexed attributes a backend may use for filtering.
// Only meaningful for memory records; other kinds leave them zero.
type Attrs struct {
	Tier       string
	Category   string
	Importance int
	Archived   bool
	UpdatedAt  time.Time
}

// Record is one stored entity: an opaque payload plus filterable attributes.
type Record struct {
	Kind  Kind
	ID    string
	Data  []byte
	Attrs Attrs
}

// Filter narrows a Query. Zero values mean "any".
type Filter struct {
	Tier          string
	Category      string
	MinImportance int
	// Archived filters on the archived flag when non-nil.
	Archived *bool
	Limit    int
}

// Backend is the narrow contract to the durable store.
//
// Implementations: SQLite (storage/sqlite) for real deployments, the
// in-memory backend below for tests. There is deliberately no Delete
// on this interface: the engine archives, it does not destroy.
type Backend interface {
	// Get returns the record for (kind, id), with found=false on miss.
	Get(ctx context.Context, kind Kind, id string) (Record, bool, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, rec Record) error

	// Query returns records of a kind matching the filter, most
	// recently updated first.
	Query(ctx context.Context, kind Kind, f Filter) ([]Record, error)

	// Close releases resources.
	Close() error
}

// MemBackend is a map-backed Backend for tests and examples.
type MemBackend struct {
	mu      sync.RWMutex
	records map[Kind]map[string]Record
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{records: make(map[Kind]map[string]Record)}
}

func (b *MemBackend) Get(ctx context.Context, kind Kind, id string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[kind][id]
	return rec, ok, nil
}

func (b *MemBackend) Put(ctx context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec.Attrs.UpdatedAt.IsZero() {
		rec.Attrs.UpdatedAt = time.Now()
	}
	byID, ok := b.records[rec.Kind]
	if !ok {
		byID = make(map[string]Record)
		b.records[rec.Kind] = byID
	}
	byID[rec.ID] = rec
	return nil
}

func (b *MemBackend) Query(ctx context.Context, kind Kind, f Filter) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for _, rec := range b.records[kind] {
		if !matches(rec, f) {
			continue
		}
		out = append(out, rec)
	}
	sortByUpdatedDesc(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (b *MemBackend) Close() error { return nil }

// Len reports the number of records of a kind, for test assertions.
func (b *MemBackend) Len(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records[kind])
}

func matches(rec Record, f Filter) bool {
	if f.Tier != "" && rec.Attrs.Tier != f.Tier {
		return false
	}
	if f.Category != "" && rec.Attrs.Category != f.Category {
		return false
	}
	if f.MinImportance > 0 && rec.Attrs.Importance < f.MinImportance {
		return false
	}
	if f.Archived != nil && rec.Attrs.Archived != *f.Archived {
		return false
	}
	return true
}

func sortByUpdatedDesc(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Attrs.UpdatedAt.After(recs[j].Attrs.UpdatedAt)
	})
}
