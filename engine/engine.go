// Package engine wires the recall components into one facade: the
// tiered store, retention scorer, attention ranker, associative
// learner, embedding cache, and context assembler, plus the cron
// heartbeat that drives consolidation in the background. All shared
// structures are constructed here and torn down in Stop; nothing is a
// process-wide singleton.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/embermind/recall/assoc"
	"github.com/embermind/recall/attention"
	"github.com/embermind/recall/cache"
	"github.com/embermind/recall/config"
	"github.com/embermind/recall/core"
	"github.com/embermind/recall/memory"
	"github.com/embermind/recall/memory/embedder"
	"github.com/embermind/recall/memory/embedder/mock"
	"github.com/embermind/recall/memory/store/chromem"
	"github.com/embermind/recall/retention"
	"github.com/embermind/recall/storage"
	"github.com/embermind/recall/storage/sqlite"
	"github.com/embermind/recall/window"
)

// heartbeatTimeout bounds one background consolidation pass.
const heartbeatTimeout = 5 * time.Minute

// Engine is the top-level recall facade.
type Engine struct {
	cfg config.Config

	backend    storage.Backend
	embedder   memory.Embedder
	fallback   memory.Embedder
	index      memory.VectorIndex
	summarizer window.Summarizer

	embedCache *cache.Cache[[]float32]
	store      *memory.Store
	scorer     *retention.Scorer
	ranker     *attention.Ranker
	learner    *assoc.Learner
	assembler  *window.Assembler

	cron *cron.Cron

	mu      sync.Mutex
	started bool
}

// Option configures the engine.
type Option func(*Engine)

// WithBackend overrides the backing store chosen from config.
func WithBackend(b storage.Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithEmbedder overrides the default mock embedder.
func WithEmbedder(emb memory.Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithFallbackEmbedder sets a secondary embedder tried when the
// primary fails.
func WithFallbackEmbedder(emb memory.Embedder) Option {
	return func(e *Engine) { e.fallback = emb }
}

// WithVectorIndex overrides the default in-memory chromem index.
func WithVectorIndex(idx memory.VectorIndex) Option {
	return func(e *Engine) { e.index = idx }
}

// WithSummarizer enables window compaction.
func WithSummarizer(s window.Summarizer) Option {
	return func(e *Engine) { e.summarizer = s }
}

// New builds the engine from config. Components not overridden by
// options get working defaults: sqlite or in-memory storage per
// config, the deterministic mock embedder, and an in-memory vector
// index.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}

	if e.backend == nil {
		if cfg.Storage.Path != "" {
			b, err := sqlite.Open(cfg.Storage.Path)
			if err != nil {
				return nil, fmt.Errorf("open storage: %w", err)
			}
			e.backend = b
		} else {
			e.backend = storage.NewMemBackend()
		}
	}
	if e.embedder == nil {
		e.embedder = mock.New()
	}
	// All embedding goes through the resolver so transient provider
	// failures get a retry and an optional fallback.
	resolverOpts := []embedder.Option{}
	if e.fallback != nil {
		resolverOpts = append(resolverOpts, embedder.WithSecondary(e.fallback))
	}
	e.embedder = embedder.NewResolver(e.embedder, resolverOpts...)
	if e.index == nil {
		idx, err := chromem.New()
		if err != nil {
			return nil, fmt.Errorf("create vector index: %w", err)
		}
		e.index = idx
	}

	embedCache, err := cache.NewVectorCache(cfg.Cache.Capacity, e.backend)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	e.embedCache = embedCache

	e.scorer = retention.NewScorer(cfg.Retention)
	e.ranker = attention.NewRanker(cfg.Attention)
	e.learner = assoc.NewLearner(cfg.Association)

	store, err := memory.NewStore(e.backend, e.scorer, cfg.Memory,
		memory.WithVectorIndex(e.index),
		memory.WithEmbedFunc(e.embed),
		memory.WithAccessObserver(e.learner),
	)
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	e.store = store

	assemblerOpts := []window.AssemblerOption{
		window.WithCoreSource(e.coreItems),
		window.WithRetriever(e.archivalSegments),
		window.WithSummaryPersist(e.store.StoreItem),
	}
	if e.summarizer != nil {
		assemblerOpts = append(assemblerOpts, window.WithSummarizer(e.summarizer))
	}
	e.assembler = window.NewAssembler(cfg.Window, assemblerOpts...)

	e.cron = cron.New()
	return e, nil
}

// Start restores persisted state and begins the consolidation
// heartbeat.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	if err := e.restoreAssociations(ctx); err != nil {
		return err
	}
	if err := e.store.RebuildIndex(ctx); err != nil {
		return err
	}

	if _, err := e.cron.AddFunc(e.cfg.Heartbeat.Schedule, e.heartbeat); err != nil {
		return fmt.Errorf("schedule heartbeat %q: %w", e.cfg.Heartbeat.Schedule, err)
	}
	e.cron.Start()
	e.started = true

	log.Printf("[ENGINE] started, heartbeat %q", e.cfg.Heartbeat.Schedule)
	return nil
}

// Stop waits for any running heartbeat to finish, persists the
// association graph, and closes the backing store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		<-e.cron.Stop().Done()
		e.started = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()
	if err := e.persistAssociations(ctx); err != nil {
		log.Printf("[ENGINE] persist associations on stop: %v", err)
	}

	if err := e.backend.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	log.Printf("[ENGINE] stopped")
	return nil
}

// Remember stores new content, placed by importance and category.
func (e *Engine) Remember(ctx context.Context, content string, importance int, category core.Category) (*core.MemoryItem, error) {
	return e.store.Store(ctx, content, importance, category)
}

// RememberCore stores content flagged as core: it is included in every
// assembled context window and never starts in the volatile tier.
func (e *Engine) RememberCore(ctx context.Context, content string, importance int, category core.Category) (*core.MemoryItem, error) {
	item, err := core.NewMemoryItem(content, importance, category)
	if err != nil {
		return nil, err
	}
	item.Meta.Core = true
	item.Tier = core.TierDurable
	if importance >= e.cfg.Memory.StableImportance {
		item.Tier = core.TierStable
	}
	if err := e.store.StoreItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Recall returns an item by id, recording the access.
func (e *Engine) Recall(ctx context.Context, id string) (*core.MemoryItem, error) {
	return e.store.Get(ctx, id)
}

// Reinforce records an explicit reinforcement of an item.
func (e *Engine) Reinforce(ctx context.Context, id string) error {
	return e.store.Reinforce(ctx, id)
}

// Search queries all tiers and ranks the hits with the attention
// profile inferred from the query.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]attention.Result, error) {
	return e.searchRanked(ctx, query, limit, "")
}

// SearchWithProfile is Search with an explicit attention profile.
func (e *Engine) SearchWithProfile(ctx context.Context, query string, limit int, profile attention.Profile) ([]attention.Result, error) {
	return e.searchRanked(ctx, query, limit, profile)
}

func (e *Engine) searchRanked(ctx context.Context, query string, limit int, profile attention.Profile) ([]attention.Result, error) {
	hits, err := e.store.Search(ctx, query, []core.Tier{core.TierVolatile, core.TierDurable, core.TierStable}, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]attention.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, attention.Candidate{Item: hit.Item, BaseScore: hit.Score})
	}
	if profile == "" {
		return e.ranker.Rank(query, candidates), nil
	}
	return e.ranker.RankWithProfile(query, candidates, profile), nil
}

// Related returns the learned neighbors of an item, strongest first.
func (e *Engine) Related(id string, limit int) []assoc.Neighbor {
	return e.learner.Associated(id, 0, limit)
}

// Feedback applies user feedback to an item's associations. Replayed
// event ids are ignored. Returns the applied adjustment.
func (e *Engine) Feedback(eventID, memoryID string, kind assoc.Feedback) int {
	return e.learner.RecordFeedback(eventID, memoryID, kind)
}

// AssembleContext builds the bounded context window for one turn of a
// session.
func (e *Engine) AssembleContext(ctx context.Context, session *window.Session, maxTokens int) (*window.Window, error) {
	return e.assembler.Assemble(ctx, session, maxTokens)
}

// Report summarizes one consolidation pass across components.
type Report struct {
	Memory       memory.ConsolidationReport
	Associations assoc.DecaySummary
}

// Consolidate runs the tier transitions and association decay sweep,
// then persists the association graph.
func (e *Engine) Consolidate(ctx context.Context) (Report, error) {
	memReport, err := e.store.Consolidate(ctx)
	if err != nil {
		return Report{Memory: memReport}, err
	}

	report := Report{
		Memory:       memReport,
		Associations: e.learner.Decay(),
	}
	if err := e.persistAssociations(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// Stats is a point-in-time view of the engine's working state.
type Stats struct {
	VolatileItems  int         `json:"volatile_items"`
	Associations   int         `json:"associations"`
	EmbeddingCache cache.Stats `json:"embedding_cache"`
}

// Stat reports current occupancy and cache counters.
func (e *Engine) Stat() Stats {
	return Stats{
		VolatileItems:  e.store.VolatileLen(),
		Associations:   e.learner.Size(),
		EmbeddingCache: e.embedCache.Stats(),
	}
}

func (e *Engine) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()

	report, err := e.Consolidate(ctx)
	if err != nil {
		log.Printf("[ENGINE] heartbeat consolidation: %v", err)
		return
	}
	log.Printf("[ENGINE] heartbeat: %d volatile checked, %d associations decayed, %d evicted",
		report.Memory.VolatileChecked, report.Associations.Decayed, report.Associations.Evicted)
}

// embed resolves embeddings through the two-tier cache so repeated
// content never re-runs the model.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedCache.GetOrCompute(ctx, text, func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, text)
	})
}

// coreItems loads the never-evicted items for window assembly, oldest
// first so windows stay deterministic.
func (e *Engine) coreItems(ctx context.Context) ([]*core.MemoryItem, error) {
	notArchived := false
	recs, err := e.backend.Query(ctx, storage.KindMemory, storage.Filter{Archived: &notArchived})
	if err != nil {
		return nil, &core.BackingStoreError{Op: "query", Err: err}
	}

	var items []*core.MemoryItem
	for _, rec := range recs {
		var item core.MemoryItem
		if err := json.Unmarshal(rec.Data, &item); err != nil {
			continue
		}
		if item.Meta.Core {
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// archivalSegments fills the window's archival reserve with compacted
// or archived content matching the query.
func (e *Engine) archivalSegments(ctx context.Context, query string, maxTokens int) ([]window.Segment, error) {
	archived := true
	recs, err := e.backend.Query(ctx, storage.KindMemory, storage.Filter{Archived: &archived, Limit: 50})
	if err != nil {
		return nil, &core.BackingStoreError{Op: "query", Err: err}
	}

	words := strings.Fields(strings.ToLower(query))
	type scored struct {
		item  *core.MemoryItem
		score float64
	}
	var hits []scored
	for _, rec := range recs {
		var item core.MemoryItem
		if err := json.Unmarshal(rec.Data, &item); err != nil {
			continue
		}
		if score := matchFraction(strings.ToLower(item.Content), words); score > 0 {
			hits = append(hits, scored{item: &item, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	var segs []window.Segment
	for _, hit := range hits {
		segs = append(segs, window.Segment{
			Kind:    window.SegmentArchival,
			Ref:     hit.item.ID,
			Content: hit.item.Content,
		})
	}
	return segs, nil
}

// persistAssociations writes the association graph to the backing
// store, one record per pair.
func (e *Engine) persistAssociations(ctx context.Context) error {
	for _, a := range e.learner.Snapshot() {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal association: %w", err)
		}
		err = e.backend.Put(ctx, storage.Record{
			Kind:  storage.KindAssociation,
			ID:    a.A + "|" + a.B,
			Data:  data,
			Attrs: storage.Attrs{UpdatedAt: a.LastReinforcedAt},
		})
		if err != nil {
			return &core.BackingStoreError{Op: "put", Err: err}
		}
	}
	return nil
}

func (e *Engine) restoreAssociations(ctx context.Context) error {
	recs, err := e.backend.Query(ctx, storage.KindAssociation, storage.Filter{})
	if err != nil {
		return &core.BackingStoreError{Op: "query", Err: err}
	}

	var assocs []assoc.Association
	for _, rec := range recs {
		var a assoc.Association
		if err := json.Unmarshal(rec.Data, &a); err != nil {
			log.Printf("[ENGINE] restore association %s: %v", rec.ID, err)
			continue
		}
		assocs = append(assocs, a)
	}
	if len(assocs) > 0 {
		e.learner.Restore(assocs)
		log.Printf("[ENGINE] restored %d associations", len(assocs))
	}
	return nil
}

func matchFraction(content string, words []string) float64 {
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
