// Package chromem implements the memory.VectorIndex contract on
// chromem-go, a pure Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/embermind/recall/core"
	"github.com/embermind/recall/memory"
)

// Index wraps chromem-go with one collection per tier.
type Index struct {
	db          *chromem.DB
	collections map[core.Tier]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory chromem index.
func New() (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[core.Tier]*chromem.Collection),
	}, nil
}

// NewPersistent creates a chromem index persisted under dir.
func NewPersistent(dir string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Index{
		db:          db,
		collections: make(map[core.Tier]*chromem.Collection),
	}, nil
}

// getOrCreateCollection returns the collection for a tier.
func (x *Index) getOrCreateCollection(tier core.Tier) (*chromem.Collection, error) {
	x.mu.RLock()
	col, exists := x.collections[tier]
	x.mu.RUnlock()

	if exists {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, exists := x.collections[tier]; exists {
		return col, nil
	}

	col, err := x.db.CreateCollection("tier_"+string(tier), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	x.collections[tier] = col
	return col, nil
}

// Add indexes an item's embedding under its tier.
func (x *Index) Add(ctx context.Context, tier core.Tier, item *core.MemoryItem) error {
	if len(item.Embedding) == 0 {
		return fmt.Errorf("item %s has no embedding", item.ID)
	}

	col, err := x.getOrCreateCollection(tier)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        item.ID,
		Content:   item.Content,
		Embedding: item.Embedding,
		Metadata: map[string]string{
			"category": string(item.Category),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns ids by vector similarity within one tier, highest
// similarity first. chromem requires nResults <= collection size, so
// the limit is clamped to the document count.
func (x *Index) Query(ctx context.Context, tier core.Tier, embedding []float32, limit int) ([]memory.VectorMatch, error) {
	col, err := x.getOrCreateCollection(tier)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.VectorMatch, 0, len(results))
	for _, result := range results {
		matches = append(matches, memory.VectorMatch{
			ID:         result.ID,
			Similarity: float64(result.Similarity),
		})
	}
	return matches, nil
}
