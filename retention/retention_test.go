package retention

import (
	"testing"
	"time"

	"github.com/embermind/recall/core"
)

func testItem(importance int, category core.Category, accessCount int, lastAccess time.Time) *core.MemoryItem {
	return &core.MemoryItem{
		ID:             "test",
		Content:        "content",
		Importance:     importance,
		Category:       category,
		CreatedAt:      lastAccess.Add(-24 * time.Hour),
		LastAccessedAt: lastAccess,
		AccessCount:    accessCount,
	}
}

func TestScore_Bounded(t *testing.T) {
	s := NewScorer(DefaultConfig())

	old := testItem(1, core.CategoryEventLog, 1, time.Now().Add(-365*24*time.Hour))
	score := s.Score(old)
	if score <= 0 {
		t.Errorf("score must stay above zero, got %v", score)
	}
	if score > 1 {
		t.Errorf("score must not exceed 1, got %v", score)
	}

	fresh := testItem(10, core.CategoryRelationshipMoment, 1000, time.Now())
	if got := s.Score(fresh); got > 1 {
		t.Errorf("score must not exceed 1, got %v", got)
	}
}

func TestScore_MonotonicInImportance(t *testing.T) {
	s := NewScorer(DefaultConfig())
	lastAccess := time.Now().Add(-6 * time.Hour)

	prev := -1.0
	for importance := core.MinImportance; importance <= core.MaxImportance; importance++ {
		score := s.Score(testItem(importance, core.CategoryFact, 5, lastAccess))
		if score < prev {
			t.Errorf("score decreased at importance %d: %v -> %v", importance, prev, score)
		}
		prev = score
	}
}

func TestActionFor_PureAndComplete(t *testing.T) {
	s := NewScorer(DefaultConfig())
	valid := map[Action]bool{
		ActionBoost: true, ActionKeep: true, ActionConsolidate: true,
		ActionDecay: true, ActionArchive: true,
	}

	for score := 0.0; score <= 1.0; score += 0.01 {
		a := s.ActionFor(score)
		if !valid[a] {
			t.Fatalf("unexpected action %q for score %v", a, score)
		}
		if b := s.ActionFor(score); b != a {
			t.Fatalf("ActionFor not pure: %q vs %q at %v", a, b, score)
		}
	}

	if s.ActionFor(0.95) != ActionBoost {
		t.Error("high score should map to boost")
	}
	if s.ActionFor(0.05) != ActionArchive {
		t.Error("low score should map to archive")
	}
}

func TestScenario_HotRelationshipMemory(t *testing.T) {
	s := NewScorer(DefaultConfig())

	item := testItem(9, core.CategoryRelationshipMoment, 50, time.Now().Add(-30*time.Minute))
	score := s.Score(item)
	if score <= 0.8 {
		t.Errorf("expected score above 0.8, got %v", score)
	}
	if got := s.ActionFor(score); got != ActionBoost {
		t.Errorf("expected boost, got %q", got)
	}
}

func TestCategoryMultiplier(t *testing.T) {
	s := NewScorer(DefaultConfig())
	lastAccess := time.Now().Add(-12 * time.Hour)

	protected := s.Score(testItem(5, core.CategoryRelationshipMoment, 3, lastAccess))
	routine := s.Score(testItem(5, core.CategoryEventLog, 3, lastAccess))
	neutral := s.Score(testItem(5, core.CategoryGeneral, 3, lastAccess))

	if protected <= neutral {
		t.Errorf("protected category should score above neutral: %v <= %v", protected, neutral)
	}
	if routine >= neutral {
		t.Errorf("routine category should score below neutral: %v >= %v", routine, neutral)
	}
}

func TestHighImportanceDecaysSlower(t *testing.T) {
	s := NewScorer(DefaultConfig())

	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	low := s.recencyScore(weekAgo, normalizeImportance(2))
	high := s.recencyScore(weekAgo, normalizeImportance(9))
	if high <= low {
		t.Errorf("high importance should retain more recency: %v <= %v", high, low)
	}
}

func TestSuggestImportanceUpdate_SingleStep(t *testing.T) {
	s := NewScorer(DefaultConfig())

	hot := testItem(9, core.CategoryRelationshipMoment, 50, time.Now())
	if got := s.SuggestImportanceUpdate(hot); got != 10 {
		t.Errorf("expected boost to 10, got %d", got)
	}

	maxed := testItem(10, core.CategoryRelationshipMoment, 50, time.Now())
	if got := s.SuggestImportanceUpdate(maxed); got != 10 {
		t.Errorf("importance must stay bounded at 10, got %d", got)
	}

	stale := testItem(1, core.CategoryEventLog, 1, time.Now().Add(-90*24*time.Hour))
	if got := s.SuggestImportanceUpdate(stale); got != 1 {
		t.Errorf("importance must stay bounded at 1, got %d", got)
	}

	stale.Importance = 4
	if got := s.SuggestImportanceUpdate(stale); got != 3 {
		t.Errorf("expected single-step decay to 3, got %d", got)
	}
}

func TestEvaluateBatch(t *testing.T) {
	s := NewScorer(DefaultConfig())

	items := []*core.MemoryItem{
		testItem(9, core.CategoryRelationshipMoment, 50, time.Now()),
		testItem(5, core.CategoryFact, 3, time.Now().Add(-24*time.Hour)),
		testItem(1, core.CategoryEventLog, 1, time.Now().Add(-90*24*time.Hour)),
	}

	records, summary := s.EvaluateBatch(items)
	if len(records) != 3 || summary.Total != 3 {
		t.Fatalf("expected 3 records, got %d (summary %d)", len(records), summary.Total)
	}

	counted := 0
	for _, n := range summary.ByAction {
		counted += n
	}
	if counted != 3 {
		t.Errorf("per-action counts should sum to total, got %d", counted)
	}

	// Batch evaluation must not mutate items.
	if items[0].Importance != 9 || items[0].AccessCount != 50 {
		t.Error("EvaluateBatch mutated an item")
	}
}
