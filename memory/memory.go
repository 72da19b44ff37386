package memory

import (
	"context"

	"github.com/embermind/recall/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), ONNX (local, build-tagged),
// API-backed embedders in production deployments.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// EmbedFunc resolves an embedding for a text. The store takes a
// function rather than an Embedder so callers can compose caching and
// fallback without the store knowing.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// VectorMatch is one hit from a vector index query.
type VectorMatch struct {
	ID         string
	Similarity float64
}

// VectorIndex is the semantic search backend for the durable and
// stable tiers. Implementations: chromem (local embedded index).
type VectorIndex interface {
	// Add indexes an item's embedding under its tier.
	Add(ctx context.Context, tier core.Tier, item *core.MemoryItem) error

	// Query returns ids by vector similarity within one tier, highest
	// similarity first.
	Query(ctx context.Context, tier core.Tier, embedding []float32, limit int) ([]VectorMatch, error)
}

// SearchResult is one item returned by Store.Search, tagged with the
// tier it came from.
type SearchResult struct {
	Item  *core.MemoryItem
	Tier  core.Tier
	Score float64
}

// AccessObserver is notified on every item access so the associative
// learner can track co-access. Implementations must be fast; the
// store calls them outside its lock but on the request path.
type AccessObserver interface {
	OnAccess(id string, query string)
	OnCoAccess(ids []string, query string)
}
