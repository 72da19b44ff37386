package window

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/embermind/recall/core"
)

// Summarizer condenses aged dialogue turns during compaction.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (Summary, error)
}

// CoreSource supplies the never-evicted memory items every window
// starts with.
type CoreSource func(ctx context.Context) ([]*core.MemoryItem, error)

// Retriever supplies archival segments for the reserved slice of the
// budget. Implementations should order by relevance; the assembler
// includes results until the reserve runs out.
type Retriever func(ctx context.Context, query string, maxTokens int) ([]Segment, error)

// PersistFunc stores a compaction summary as a first-class memory item
// so it reappears in future windows as context.
type PersistFunc func(ctx context.Context, item *core.MemoryItem) error

// Config tunes assembly.
type Config struct {
	// ArchivalReserve is the fraction of the post-core budget held for
	// archival lookups. Unused reserve is released back to dialogue.
	ArchivalReserve float64 `yaml:"archival_reserve"`

	// CompactionThreshold is the estimated-usage fraction of the budget
	// past which aged turns are summarized away.
	CompactionThreshold float64 `yaml:"compaction_threshold"`

	// SummaryImportance is the importance assigned to persisted
	// compaction summaries.
	SummaryImportance int `yaml:"summary_importance"`
}

// DefaultConfig returns the stock assembly tuning.
func DefaultConfig() Config {
	return Config{
		ArchivalReserve:     0.20,
		CompactionThreshold: 0.80,
		SummaryImportance:   6,
	}
}

// Assembler builds context windows. All collaborators are optional:
// without a summarizer compaction is skipped, without a retriever the
// archival reserve is released to dialogue.
type Assembler struct {
	cfg        Config
	coreSource CoreSource
	retriever  Retriever
	summarizer Summarizer
	persist    PersistFunc
}

// AssemblerOption configures the assembler.
type AssemblerOption func(*Assembler)

// WithCoreSource sets the supplier of never-evicted items.
func WithCoreSource(src CoreSource) AssemblerOption {
	return func(a *Assembler) { a.coreSource = src }
}

// WithRetriever enables archival lookups against the reserve.
func WithRetriever(r Retriever) AssemblerOption {
	return func(a *Assembler) { a.retriever = r }
}

// WithSummarizer enables compaction.
func WithSummarizer(s Summarizer) AssemblerOption {
	return func(a *Assembler) { a.summarizer = s }
}

// WithSummaryPersist stores compaction summaries as memory items.
func WithSummaryPersist(p PersistFunc) AssemblerOption {
	return func(a *Assembler) { a.persist = p }
}

// NewAssembler creates an assembler with the given tuning.
func NewAssembler(cfg Config, opts ...AssemblerOption) *Assembler {
	if cfg.ArchivalReserve < 0 || cfg.ArchivalReserve >= 1 {
		cfg.ArchivalReserve = DefaultConfig().ArchivalReserve
	}
	if cfg.CompactionThreshold <= 0 || cfg.CompactionThreshold > 1 {
		cfg.CompactionThreshold = DefaultConfig().CompactionThreshold
	}
	if cfg.SummaryImportance < core.MinImportance || cfg.SummaryImportance > core.MaxImportance {
		cfg.SummaryImportance = DefaultConfig().SummaryImportance
	}
	a := &Assembler{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the window for one turn: all core items first, prior
// compaction summaries, archival results inside the reserve, then the
// most recent dialogue newest-first until the budget or the history is
// exhausted. If the full live history would push estimated usage past
// the compaction threshold, the turns that did not fit are summarized
// and checkpointed out of future windows. The returned window's token
// estimate never exceeds maxTokens.
func (a *Assembler) Assemble(ctx context.Context, session *Session, maxTokens int) (*Window, error) {
	if session == nil {
		return nil, &core.ValidationError{Field: "session", Reason: "must not be nil"}
	}
	if maxTokens <= 0 {
		return nil, &core.ValidationError{Field: "max_tokens", Reason: "must be positive"}
	}

	win := &Window{SessionID: session.ID, Budget: maxTokens}
	remaining := maxTokens

	remaining = a.addCore(ctx, win, remaining)
	remaining = a.addSummaries(session, win, remaining)

	reserve := int(float64(remaining) * a.cfg.ArchivalReserve)
	dialogueBudget := remaining - reserve

	live := session.Live()
	included, used := fitNewest(live, dialogueBudget)
	remaining -= used

	// Spend the reserve on archival lookups; whatever is left of the
	// budget, reserve included, is released back to dialogue.
	remaining -= a.addArchival(ctx, session, win, reserve)
	if remaining > 0 && len(included) < len(live) {
		more, moreUsed := fitNewest(live[:len(live)-len(included)], remaining)
		included = append(more, included...)
		remaining -= moreUsed
	}

	win.Truncated = win.Truncated || len(included) < len(live)

	if len(included) < len(live) && a.summarizer != nil {
		excess := live[:len(live)-len(included)]
		totalNeeded := win.TokensUsed + totalTokens(live)
		if float64(totalNeeded) > a.cfg.CompactionThreshold*float64(maxTokens) {
			a.compact(ctx, session, win, excess, &remaining)
		}
	}

	for _, turn := range included {
		seg := Segment{Kind: SegmentDialogue, Ref: turn.ID, Content: turn.Content, Tokens: EstimateTokens(turn.Content)}
		win.Segments = append(win.Segments, seg)
		win.TokensUsed += seg.Tokens
	}

	return win, nil
}

// addCore places every core item at the front of the window. A core
// item larger than the space left is truncated rather than dropped;
// only when nothing at all remains is one skipped.
func (a *Assembler) addCore(ctx context.Context, win *Window, remaining int) int {
	if a.coreSource == nil {
		return remaining
	}
	items, err := a.coreSource(ctx)
	if err != nil {
		log.Printf("[WINDOW] core source: %v", err)
		win.Degraded = true
		return remaining
	}

	for _, item := range items {
		cost := EstimateTokens(item.Content)
		content := item.Content
		if cost > remaining {
			if remaining <= 0 {
				win.Truncated = true
				continue
			}
			// Back the cut off to a rune boundary so truncation
			// never splits a multi-byte character.
			cut := remaining * 4
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
			cost = EstimateTokens(content)
			win.Truncated = true
		}
		win.Segments = append(win.Segments, Segment{Kind: SegmentCore, Ref: item.ID, Content: content, Tokens: cost})
		win.TokensUsed += cost
		remaining -= cost
	}
	return remaining
}

// addSummaries includes prior compaction summaries so compacted context
// keeps reappearing.
func (a *Assembler) addSummaries(session *Session, win *Window, remaining int) int {
	for _, sum := range session.Summaries {
		cost := EstimateTokens(sum.Text)
		if cost > remaining {
			win.Truncated = true
			continue
		}
		win.Segments = append(win.Segments, Segment{Kind: SegmentSummary, Content: sum.Text, Tokens: cost})
		win.TokensUsed += cost
		remaining -= cost
	}
	return remaining
}

// addArchival fills up to reserve tokens with retriever results, using
// the newest turn as the query. Returns the tokens spent.
func (a *Assembler) addArchival(ctx context.Context, session *Session, win *Window, reserve int) int {
	if a.retriever == nil || reserve <= 0 || len(session.Turns) == 0 {
		return 0
	}

	query := session.Turns[len(session.Turns)-1].Content
	segs, err := a.retriever(ctx, query, reserve)
	if err != nil {
		log.Printf("[WINDOW] archival lookup: %v", err)
		win.Degraded = true
		return 0
	}

	used := 0
	for _, seg := range segs {
		seg.Kind = SegmentArchival
		seg.Tokens = EstimateTokens(seg.Content)
		if used+seg.Tokens > reserve {
			break
		}
		win.Segments = append(win.Segments, seg)
		win.TokensUsed += seg.Tokens
		used += seg.Tokens
	}
	return used
}

// compact summarizes the turns that fell off the window, persists the
// summary as a first-class memory item, and advances the checkpoint so
// the originals stop appearing in future windows. The originals stay in
// the session; nothing is deleted. On summarizer failure the window is
// returned un-compacted and flagged degraded.
func (a *Assembler) compact(ctx context.Context, session *Session, win *Window, excess []Turn, remaining *int) {
	if len(excess) == 0 {
		return
	}

	summary, err := a.summarizer.Summarize(ctx, excess)
	if err != nil {
		log.Printf("[WINDOW] compaction summarize: %v", err)
		win.Degraded = true
		return
	}

	if a.persist != nil {
		item, err := a.summaryItem(session, summary)
		if err == nil {
			err = a.persist(ctx, item)
		}
		if err != nil {
			log.Printf("[WINDOW] compaction persist: %v", err)
			win.Degraded = true
			return
		}
	}

	session.Checkpoint += len(excess)
	session.Summaries = append(session.Summaries, summary)
	win.SummaryUsed = true

	// Include the fresh summary in this window only when it fits; it
	// will reappear in every future window regardless.
	cost := EstimateTokens(summary.Text)
	if cost <= *remaining {
		win.Segments = append(win.Segments, Segment{Kind: SegmentSummary, Content: summary.Text, Tokens: cost})
		win.TokensUsed += cost
		*remaining -= cost
	}

	log.Printf("[WINDOW] compacted %d turns of session %s into a %d-token summary",
		len(excess), session.ID, summary.TokenCount)
}

func (a *Assembler) summaryItem(session *Session, summary Summary) (*core.MemoryItem, error) {
	item, err := core.NewMemoryItem(summary.Text, a.cfg.SummaryImportance, core.CategoryGeneral)
	if err != nil {
		return nil, fmt.Errorf("build summary item: %w", err)
	}
	item.Meta.Source = "compaction"
	item.Meta.SessionID = session.ID
	return item, nil
}

// fitNewest walks turns backward, collecting the newest ones whose
// estimated cost fits in budget. Returned in chronological order.
func fitNewest(turns []Turn, budget int) ([]Turn, int) {
	var included []Turn
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		cost := EstimateTokens(turns[i].Content)
		if used+cost > budget {
			break
		}
		included = append([]Turn{turns[i]}, included...)
		used += cost
	}
	return included, used
}

func totalTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.Content)
	}
	return total
}
