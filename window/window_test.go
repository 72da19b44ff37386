package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/embermind/recall/core"
)

// fixedSummarizer returns a canned summary sized to tokens.
type fixedSummarizer struct {
	tokens int
	calls  int
	turns  []Turn
}

func (f *fixedSummarizer) Summarize(ctx context.Context, turns []Turn) (Summary, error) {
	f.calls++
	f.turns = turns
	text := strings.Repeat("s", f.tokens*4)
	return Summary{Text: text, TokenCount: f.tokens}, nil
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(ctx context.Context, turns []Turn) (Summary, error) {
	return Summary{}, errors.New("model unavailable")
}

func sessionWithTurns(n, tokensPerTurn int) *Session {
	s := &Session{ID: "sess-1"}
	content := strings.Repeat("w", tokensPerTurn*4)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		s.Append(Turn{
			ID:      fmt.Sprintf("t%d", i),
			Role:    "user",
			Content: content,
			At:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return s
}

func coreItems(t *testing.T, n, tokensEach int) []*core.MemoryItem {
	t.Helper()
	items := make([]*core.MemoryItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := core.NewMemoryItem(strings.Repeat("c", tokensEach*4), 9, core.CategoryFact)
		if err != nil {
			t.Fatalf("core item: %v", err)
		}
		item.Meta.Core = true
		items = append(items, item)
	}
	return items
}

func segmentsOfKind(w *Window, kind SegmentKind) []Segment {
	var out []Segment
	for _, seg := range w.Segments {
		if seg.Kind == kind {
			out = append(out, seg)
		}
	}
	return out
}

func TestAssemble_Validation(t *testing.T) {
	a := NewAssembler(DefaultConfig())
	if _, err := a.Assemble(context.Background(), nil, 100); !core.IsValidation(err) {
		t.Errorf("nil session: expected ValidationError, got %v", err)
	}
	if _, err := a.Assemble(context.Background(), &Session{}, 0); !core.IsValidation(err) {
		t.Errorf("zero budget: expected ValidationError, got %v", err)
	}
}

func TestAssemble_CoreItemsFirstAndBudgetHeld(t *testing.T) {
	items := coreItems(t, 5, 40) // 200 tokens of core content
	a := NewAssembler(DefaultConfig(), WithCoreSource(func(ctx context.Context) ([]*core.MemoryItem, error) {
		return items, nil
	}))

	session := sessionWithTurns(50, 50)
	win, err := a.Assemble(context.Background(), session, 1000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if win.TokensUsed > win.Budget {
		t.Errorf("window exceeds budget: %d > %d", win.TokensUsed, win.Budget)
	}

	coreSegs := segmentsOfKind(win, SegmentCore)
	if len(coreSegs) != 5 {
		t.Fatalf("expected all 5 core items, got %d", len(coreSegs))
	}
	for i, seg := range coreSegs {
		if win.Segments[i].Kind != SegmentCore {
			t.Errorf("core segment %d not at the front of the window", i)
		}
		if seg.Ref != items[i].ID {
			t.Errorf("core segment %d out of order", i)
		}
	}

	// 800 tokens of budget left after core; 50-token turns mean the 16
	// newest turns fit once the unused archival reserve is released.
	dialogue := segmentsOfKind(win, SegmentDialogue)
	if len(dialogue) != 16 {
		t.Fatalf("expected 16 dialogue turns, got %d", len(dialogue))
	}
	if dialogue[0].Ref != "t34" || dialogue[15].Ref != "t49" {
		t.Errorf("expected newest turns t34..t49 in order, got %s..%s",
			dialogue[0].Ref, dialogue[15].Ref)
	}
	if !win.Truncated {
		t.Error("dropping 34 turns must set Truncated")
	}
	if win.SummaryUsed || win.Degraded {
		t.Error("no summarizer configured, no compaction flags expected")
	}
}

func TestAssemble_OversizedCoreItemTruncated(t *testing.T) {
	items := coreItems(t, 1, 100)
	a := NewAssembler(DefaultConfig(), WithCoreSource(func(ctx context.Context) ([]*core.MemoryItem, error) {
		return items, nil
	}))

	win, err := a.Assemble(context.Background(), &Session{ID: "s"}, 10)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if win.TokensUsed > 10 {
		t.Errorf("truncated core item still over budget: %d tokens", win.TokensUsed)
	}
	coreSegs := segmentsOfKind(win, SegmentCore)
	if len(coreSegs) != 1 || coreSegs[0].Content == items[0].Content {
		t.Error("oversized core item should be present but truncated")
	}
	if !win.Truncated {
		t.Error("core truncation must set Truncated")
	}
}

func TestAssemble_ArchivalReserveSpentAndTagged(t *testing.T) {
	hit := Segment{Ref: "mem-1", Content: strings.Repeat("a", 200)} // 50 tokens
	var gotBudget int
	a := NewAssembler(DefaultConfig(), WithRetriever(func(ctx context.Context, query string, maxTokens int) ([]Segment, error) {
		gotBudget = maxTokens
		return []Segment{hit}, nil
	}))

	session := sessionWithTurns(50, 50)
	win, err := a.Assemble(context.Background(), session, 1000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if gotBudget != 200 {
		t.Errorf("expected 20%% reserve of 1000, retriever got %d", gotBudget)
	}
	archival := segmentsOfKind(win, SegmentArchival)
	if len(archival) != 1 || archival[0].Ref != "mem-1" {
		t.Fatalf("expected one tagged archival segment, got %v", archival)
	}
	if win.TokensUsed > win.Budget {
		t.Errorf("window exceeds budget: %d > %d", win.TokensUsed, win.Budget)
	}
	// 150 unused reserve tokens are released: 16 + 3 more turns fit.
	if got := len(segmentsOfKind(win, SegmentDialogue)); got != 19 {
		t.Errorf("expected 19 dialogue turns after reserve release, got %d", got)
	}
}

func TestAssemble_CompactionSummarizesExcess(t *testing.T) {
	sum := &fixedSummarizer{tokens: 300}
	var persisted *core.MemoryItem
	a := NewAssembler(DefaultConfig(),
		WithSummarizer(sum),
		WithSummaryPersist(func(ctx context.Context, item *core.MemoryItem) error {
			persisted = item
			return nil
		}))

	session := sessionWithTurns(30, 50) // 1500 tokens of history
	win, err := a.Assemble(context.Background(), session, 1000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if !win.SummaryUsed {
		t.Fatal("expected SummaryUsed after compaction")
	}
	if win.Degraded {
		t.Error("successful compaction must not flag degraded")
	}
	if sum.calls != 1 || len(sum.turns) != 10 {
		t.Fatalf("expected the 10 oldest turns summarized, got %d calls over %d turns",
			sum.calls, len(sum.turns))
	}
	if session.Checkpoint != 10 {
		t.Errorf("checkpoint should advance past summarized turns, is %d", session.Checkpoint)
	}
	if len(session.Turns) != 30 {
		t.Error("compaction must never delete turns")
	}

	// Summarized originals are out of the active window.
	for _, seg := range win.Segments {
		for i := 0; i < 10; i++ {
			if seg.Ref == fmt.Sprintf("t%d", i) {
				t.Errorf("summarized turn %s still in active window", seg.Ref)
			}
		}
	}

	// The summary is persisted as a first-class memory item.
	if persisted == nil {
		t.Fatal("summary was not persisted")
	}
	if persisted.Meta.Source != "compaction" || persisted.Meta.SessionID != session.ID {
		t.Errorf("persisted summary metadata wrong: %+v", persisted.Meta)
	}

	// The summary reappears as context in the next window.
	next, err := a.Assemble(context.Background(), session, 2000)
	if err != nil {
		t.Fatalf("second Assemble failed: %v", err)
	}
	if got := len(segmentsOfKind(next, SegmentSummary)); got != 1 {
		t.Errorf("expected the summary in the next window, got %d summary segments", got)
	}
}

func TestAssemble_SummarizerFailureDegrades(t *testing.T) {
	a := NewAssembler(DefaultConfig(), WithSummarizer(failingSummarizer{}))

	session := sessionWithTurns(30, 50)
	win, err := a.Assemble(context.Background(), session, 1000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if !win.Degraded {
		t.Error("summarizer failure must flag degraded")
	}
	if win.SummaryUsed {
		t.Error("failed compaction must not claim a summary")
	}
	if !win.Truncated {
		t.Error("window should fall back to plain truncation")
	}
	if session.Checkpoint != 0 {
		t.Error("failed compaction must not advance the checkpoint")
	}
	if len(segmentsOfKind(win, SegmentDialogue)) == 0 {
		t.Error("degraded window should still carry recent dialogue")
	}
}

func TestAssemble_BelowThresholdNoCompaction(t *testing.T) {
	sum := &fixedSummarizer{tokens: 50}
	a := NewAssembler(DefaultConfig(), WithSummarizer(sum))

	session := sessionWithTurns(5, 50) // 250 of 1000 tokens
	win, err := a.Assemble(context.Background(), session, 1000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if win.Truncated || win.SummaryUsed || sum.calls != 0 {
		t.Errorf("light session should assemble whole: %+v, %d summarizer calls", win, sum.calls)
	}
	if got := len(segmentsOfKind(win, SegmentDialogue)); got != 5 {
		t.Errorf("expected all 5 turns, got %d", got)
	}
}

func TestAssemble_TruncationKeepsRuneBoundary(t *testing.T) {
	// 40 three-byte runes, 120 bytes, 30 tokens. A budget of 10 cuts
	// at byte 40, inside the 14th rune.
	item, err := core.NewMemoryItem(strings.Repeat("語", 40), 9, core.CategoryFact)
	if err != nil {
		t.Fatalf("core item: %v", err)
	}
	item.Meta.Core = true
	a := NewAssembler(DefaultConfig(), WithCoreSource(func(ctx context.Context) ([]*core.MemoryItem, error) {
		return []*core.MemoryItem{item}, nil
	}))

	win, err := a.Assemble(context.Background(), &Session{ID: "s"}, 10)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	coreSegs := segmentsOfKind(win, SegmentCore)
	if len(coreSegs) != 1 {
		t.Fatalf("expected 1 truncated core segment, got %d", len(coreSegs))
	}
	if !utf8.ValidString(coreSegs[0].Content) {
		t.Error("truncation split a multi-byte rune")
	}
	if coreSegs[0].Content == "" {
		t.Error("expected truncated content, got none")
	}
	if win.TokensUsed > 10 {
		t.Errorf("truncated core item still over budget: %d tokens", win.TokensUsed)
	}
	if !win.Truncated {
		t.Error("core truncation must set Truncated")
	}
}
