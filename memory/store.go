package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/embermind/recall/core"
	"github.com/embermind/recall/retention"
	"github.com/embermind/recall/storage"
)

// Config tunes the tiered store.
type Config struct {
	// VolatileCapacity bounds the in-process tier. At capacity the
	// least-recently-used item is evicted and demoted or archived.
	VolatileCapacity int `yaml:"volatile_capacity"`

	// VolatileDecayAfter is how long a volatile item survives without
	// access before the next consolidation pass moves it out.
	VolatileDecayAfter time.Duration `yaml:"volatile_decay_after"`

	// PromoteImportance is the minimum importance for a decayed or
	// evicted volatile item to be promoted to durable instead of
	// archived, and for placement to start at durable.
	PromoteImportance int `yaml:"promote_importance"`

	// StableImportance is the minimum importance for placement to
	// start directly at stable.
	StableImportance int `yaml:"stable_importance"`

	// StableReinforcement is the reinforcement count a durable item
	// needs (along with a boost-band retention score) to be promoted
	// to stable.
	StableReinforcement int `yaml:"stable_reinforcement"`

	// ProtectedCategories start at durable regardless of importance.
	ProtectedCategories []core.Category `yaml:"protected_categories"`

	// IDCacheSize bounds the read-through item cache in entries.
	IDCacheSize int64 `yaml:"id_cache_size"`
}

// DefaultConfig returns the stock store tuning.
func DefaultConfig() Config {
	return Config{
		VolatileCapacity:    256,
		VolatileDecayAfter:  10 * time.Minute,
		PromoteImportance:   6,
		StableImportance:    9,
		StableReinforcement: 3,
		ProtectedCategories: []core.Category{
			core.CategoryRelationshipMoment,
			core.CategoryEmotion,
		},
		IDCacheSize: 4096,
	}
}

// Store holds memory items across three tiers and is the only place
// where tier transitions happen. The mutex guards the volatile tier
// and is never held across a backend or index call.
type Store struct {
	mu       sync.Mutex
	volatile *volatileTier

	backend  storage.Backend
	index    VectorIndex
	embed    EmbedFunc
	scorer   *retention.Scorer
	observer AccessObserver
	ids      *ristretto.Cache
	cfg      Config

	protected map[core.Category]bool
}

// Option configures the store.
type Option func(*Store)

// WithVectorIndex enables semantic search over durable and stable
// tiers.
func WithVectorIndex(index VectorIndex) Option {
	return func(s *Store) { s.index = index }
}

// WithEmbedFunc sets the embedding resolver used when persisting and
// searching durable content.
func WithEmbedFunc(embed EmbedFunc) Option {
	return func(s *Store) { s.embed = embed }
}

// WithAccessObserver wires the associative learner into item accesses.
func WithAccessObserver(obs AccessObserver) Option {
	return func(s *Store) { s.observer = obs }
}

// NewStore creates a tiered store over the given backend.
func NewStore(backend storage.Backend, scorer *retention.Scorer, cfg Config, opts ...Option) (*Store, error) {
	if cfg.VolatileCapacity <= 0 {
		cfg.VolatileCapacity = DefaultConfig().VolatileCapacity
	}
	if cfg.IDCacheSize <= 0 {
		cfg.IDCacheSize = DefaultConfig().IDCacheSize
	}

	ids, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.IDCacheSize * 10,
		MaxCost:     cfg.IDCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create id cache: %w", err)
	}

	s := &Store{
		volatile:  newVolatileTier(cfg.VolatileCapacity),
		backend:   backend,
		scorer:    scorer,
		ids:       ids,
		cfg:       cfg,
		protected: make(map[core.Category]bool),
	}
	for _, c := range cfg.ProtectedCategories {
		s.protected[c] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store validates and places a new item in the tier implied by its
// importance and category.
func (s *Store) Store(ctx context.Context, content string, importance int, category core.Category) (*core.MemoryItem, error) {
	item, err := core.NewMemoryItem(content, importance, category)
	if err != nil {
		return nil, err
	}

	item.Tier = s.placementTier(importance, category)
	if item.Tier == core.TierVolatile {
		clone := item.Clone()
		s.mu.Lock()
		evicted := s.volatile.add(item)
		s.mu.Unlock()

		if evicted != nil {
			s.demoteEvicted(ctx, evicted)
		}
		return clone, nil
	}

	if err := s.persist(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// StoreItem places an already constructed item (e.g. a compaction
// summary) using the same tier rules, honoring metadata.
func (s *Store) StoreItem(ctx context.Context, item *core.MemoryItem) error {
	if item.Tier == "" {
		item.Tier = s.placementTier(item.Importance, item.Category)
	}
	if item.Tier == core.TierVolatile {
		resident := item.Clone()
		s.mu.Lock()
		evicted := s.volatile.add(resident)
		s.mu.Unlock()
		if evicted != nil {
			s.demoteEvicted(ctx, evicted)
		}
		return nil
	}
	return s.persist(ctx, item)
}

// Get returns the item by id, recording the access. Unknown ids return
// core.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*core.MemoryItem, error) {
	s.mu.Lock()
	if item, ok := s.volatile.get(id); ok {
		item.Touch()
		clone := item.Clone()
		s.mu.Unlock()
		s.notifyAccess(id, "")
		return clone, nil
	}
	s.mu.Unlock()

	item, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Touch()
	s.writeBack(ctx, item)
	s.notifyAccess(id, "")
	return item, nil
}

// Reinforce bumps an item's reinforcement count and resets its
// volatile decay clock.
func (s *Store) Reinforce(ctx context.Context, id string) error {
	s.mu.Lock()
	if item, ok := s.volatile.get(id); ok {
		item.Reinforce()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Read-modify-write goes straight to the backend: the read cache
	// is eventually consistent and could lose a reinforcement.
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	item.Reinforce()
	return s.persist(ctx, item)
}

// Search queries each requested tier independently and merges the
// results, tagging each with its source tier. Volatile search is an
// in-memory keyword scan; durable and stable go through the vector
// index. Accessed results are touched and reported as co-accessed.
func (s *Store) Search(ctx context.Context, query string, tiers []core.Tier, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	var results []SearchResult
	for _, tier := range tiers {
		switch tier {
		case core.TierVolatile:
			results = append(results, s.searchVolatile(query, limit)...)
		case core.TierDurable, core.TierStable:
			hits, err := s.searchIndexed(ctx, tier, query, limit)
			if err != nil {
				return nil, err
			}
			results = append(results, hits...)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	// Results are clones; record the access on the resident volatile
	// items under the lock, and on the backing store for the rest.
	ids := make([]string, 0, len(results))
	for _, r := range results {
		r.Item.Touch()
		ids = append(ids, r.Item.ID)
	}
	s.mu.Lock()
	for _, r := range results {
		if r.Tier == core.TierVolatile {
			if resident, ok := s.volatile.get(r.Item.ID); ok {
				resident.Touch()
			}
		}
	}
	s.mu.Unlock()
	for _, r := range results {
		if r.Tier != core.TierVolatile {
			s.writeBack(ctx, r.Item)
		}
	}
	if s.observer != nil && len(ids) > 1 {
		s.observer.OnCoAccess(ids, query)
	}

	return results, nil
}

// ConsolidationReport summarizes one consolidation pass.
type ConsolidationReport struct {
	VolatileChecked    int
	Promoted           int
	Archived           int
	StablePromoted     int
	ImportanceAdjusted int
	Errors             int
	ByAction           map[retention.Action]int
}

// Consolidate runs decay and tier transitions. It is the single entry
// point where state actually transitions; scoring elsewhere is
// read-only. Per-item failures are isolated and counted, and the pass
// stops cleanly when ctx is cancelled.
func (s *Store) Consolidate(ctx context.Context) (ConsolidationReport, error) {
	report := ConsolidationReport{ByAction: make(map[retention.Action]int)}
	now := time.Now()

	s.mu.Lock()
	expired := s.volatile.expired(now, s.cfg.VolatileDecayAfter)
	s.mu.Unlock()

	for _, item := range expired {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.VolatileChecked++

		s.mu.Lock()
		s.volatile.remove(item.ID)
		s.mu.Unlock()

		if err := s.transitionFromVolatile(ctx, item, &report); err != nil {
			log.Printf("[MEMORY] consolidate %s: %v", item.ID, err)
			report.Errors++
		}
	}

	if err := s.consolidateDurable(ctx, &report); err != nil {
		return report, err
	}

	log.Printf("[MEMORY] consolidation: %d volatile checked, %d promoted, %d archived, %d stable, %d adjusted, %d errors",
		report.VolatileChecked, report.Promoted, report.Archived,
		report.StablePromoted, report.ImportanceAdjusted, report.Errors)
	return report, nil
}

// VolatileLen reports the volatile tier occupancy.
func (s *Store) VolatileLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volatile.len()
}

// RebuildIndex reloads durable and stable embeddings into the vector
// index after a restart.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	notArchived := false
	for _, tier := range []core.Tier{core.TierDurable, core.TierStable} {
		recs, err := s.backend.Query(ctx, storage.KindMemory, storage.Filter{
			Tier: string(tier), Archived: &notArchived,
		})
		if err != nil {
			return &core.BackingStoreError{Op: "query", Err: err}
		}
		for _, rec := range recs {
			item, err := unmarshalItem(rec.Data)
			if err != nil || len(item.Embedding) == 0 {
				continue
			}
			if err := s.index.Add(ctx, tier, item); err != nil {
				log.Printf("[MEMORY] reindex %s: %v", item.ID, err)
			}
		}
	}
	return nil
}

func (s *Store) placementTier(importance int, category core.Category) core.Tier {
	switch {
	case importance >= s.cfg.StableImportance:
		return core.TierStable
	case importance >= s.cfg.PromoteImportance || s.protected[category]:
		return core.TierDurable
	default:
		return core.TierVolatile
	}
}

// demoteEvicted decides the fate of an item evicted from the volatile
// tier under capacity pressure: promote if important enough, archive
// otherwise. Never discards.
func (s *Store) demoteEvicted(ctx context.Context, item *core.MemoryItem) {
	if item.Importance >= s.cfg.PromoteImportance {
		item.Tier = core.TierDurable
	} else {
		item.Meta.Archived = true
		item.Tier = core.TierDurable
	}
	if err := s.persist(ctx, item); err != nil {
		log.Printf("[MEMORY] evicted item %s lost durable write: %v", item.ID, err)
	}
}

func (s *Store) transitionFromVolatile(ctx context.Context, item *core.MemoryItem, report *ConsolidationReport) error {
	if item.Importance >= s.cfg.PromoteImportance {
		item.Tier = core.TierDurable
		report.Promoted++
	} else {
		item.Meta.Archived = true
		item.Tier = core.TierDurable
		report.Archived++
	}
	return s.persist(ctx, item)
}

func (s *Store) consolidateDurable(ctx context.Context, report *ConsolidationReport) error {
	notArchived := false
	recs, err := s.backend.Query(ctx, storage.KindMemory, storage.Filter{
		Tier: string(core.TierDurable), Archived: &notArchived,
	})
	if err != nil {
		return &core.BackingStoreError{Op: "query", Err: err}
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := unmarshalItem(rec.Data)
		if err != nil {
			log.Printf("[MEMORY] consolidate decode %s: %v", rec.ID, err)
			report.Errors++
			continue
		}

		record := s.scorer.Evaluate(item)
		report.ByAction[record.Action]++

		changed := false
		if suggested := s.scorer.SuggestImportanceUpdate(item); suggested != item.Importance {
			item.Importance = suggested
			report.ImportanceAdjusted++
			changed = true
		}

		if record.Action == retention.ActionBoost && item.ReinforcementCount >= s.cfg.StableReinforcement {
			item.Tier = core.TierStable
			report.StablePromoted++
			changed = true
		}

		if changed {
			if err := s.persist(ctx, item); err != nil {
				log.Printf("[MEMORY] consolidate persist %s: %v", item.ID, err)
				report.Errors++
			}
		}
	}
	return nil
}

// searchVolatile scans the resident items under the lock and returns
// clones, never live pointers.
func (s *Store) searchVolatile(query string, limit int) []SearchResult {
	words := strings.Fields(strings.ToLower(query))

	s.mu.Lock()
	var results []SearchResult
	for _, item := range s.volatile.items() {
		score := keywordScore(strings.ToLower(item.Content), words)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Item: item.Clone(), Tier: core.TierVolatile, Score: score})
	}
	s.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *Store) searchIndexed(ctx context.Context, tier core.Tier, query string, limit int) ([]SearchResult, error) {
	if s.index == nil || s.embed == nil {
		return nil, nil
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, tier, embedding, limit)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, match := range matches {
		item, err := s.lookup(ctx, match.ID)
		if err != nil {
			// Index can lag the backend; tolerate missing targets.
			log.Printf("[MEMORY] search hydrate %s: %v", match.ID, err)
			continue
		}
		if item.Meta.Archived {
			continue
		}
		results = append(results, SearchResult{Item: item, Tier: tier, Score: match.Similarity})
	}
	return results, nil
}

// lookup loads an item by id through the read-through cache.
func (s *Store) lookup(ctx context.Context, id string) (*core.MemoryItem, error) {
	if cached, ok := s.ids.Get(id); ok {
		if item, ok := cached.(*core.MemoryItem); ok {
			return item.Clone(), nil
		}
	}

	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ids.Set(id, item.Clone(), 1)
	return item, nil
}

// load reads an item directly from the backing store, bypassing the
// read cache.
func (s *Store) load(ctx context.Context, id string) (*core.MemoryItem, error) {
	rec, found, err := s.backend.Get(ctx, storage.KindMemory, id)
	if err != nil {
		return nil, &core.BackingStoreError{Op: "get", Err: err}
	}
	if !found {
		return nil, core.ErrNotFound
	}
	return unmarshalItem(rec.Data)
}

// writeBack persists access-metadata mutations best-effort and
// refreshes the read-through cache.
func (s *Store) writeBack(ctx context.Context, item *core.MemoryItem) {
	s.ids.Set(item.ID, item.Clone(), 1)
	if err := s.putRecord(ctx, item); err != nil {
		log.Printf("[MEMORY] write-back %s: %v", item.ID, err)
	}
}

// persist writes the item to the backing store and, when it carries an
// embedding, to the vector index. Items without an embedding get one
// from the embed resolver when available; an embedding failure leaves
// the item persisted but not semantically searchable.
func (s *Store) persist(ctx context.Context, item *core.MemoryItem) error {
	if len(item.Embedding) == 0 && s.embed != nil && !item.Meta.Archived {
		embedding, err := s.embed(ctx, item.Content)
		if err != nil {
			log.Printf("[MEMORY] embed %s failed, stored without embedding: %v", item.ID, err)
		} else {
			item.Embedding = embedding
		}
	}

	if err := s.putRecord(ctx, item); err != nil {
		return err
	}
	s.ids.Set(item.ID, item.Clone(), 1)

	if s.index != nil && len(item.Embedding) > 0 && !item.Meta.Archived {
		if err := s.index.Add(ctx, item.Tier, item); err != nil {
			log.Printf("[MEMORY] index %s: %v", item.ID, err)
		}
	}
	return nil
}

func (s *Store) putRecord(ctx context.Context, item *core.MemoryItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	err = s.backend.Put(ctx, storage.Record{
		Kind: storage.KindMemory,
		ID:   item.ID,
		Data: data,
		Attrs: storage.Attrs{
			Tier:       string(item.Tier),
			Category:   string(item.Category),
			Importance: item.Importance,
			Archived:   item.Meta.Archived,
			UpdatedAt:  item.LastAccessedAt,
		},
	})
	if err != nil {
		return &core.BackingStoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *Store) notifyAccess(id, query string) {
	if s.observer != nil {
		s.observer.OnAccess(id, query)
	}
}

func unmarshalItem(data []byte) (*core.MemoryItem, error) {
	var item core.MemoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &item, nil
}

// keywordScore is the volatile tier's match score: the fraction of
// query words present in the content.
func keywordScore(content string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(content, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}
