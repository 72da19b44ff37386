package attention

import (
	"testing"
	"time"

	"github.com/embermind/recall/core"
)

func candidate(id string, base float64, importance int, category core.Category, accessCount int, age time.Duration) Candidate {
	return Candidate{
		Item: &core.MemoryItem{
			ID:             id,
			Content:        "content " + id,
			Importance:     importance,
			Category:       category,
			CreatedAt:      time.Now().Add(-age - time.Hour),
			LastAccessedAt: time.Now().Add(-age),
			AccessCount:    accessCount,
		},
		BaseScore: base,
	}
}

func TestRank_SortedDescending(t *testing.T) {
	r := NewRanker(DefaultConfig())

	cands := []Candidate{
		candidate("low", 0.1, 2, core.CategoryEventLog, 1, 72*time.Hour),
		candidate("high", 0.9, 9, core.CategoryFact, 40, 10*time.Minute),
		candidate("mid", 0.5, 5, core.CategoryFact, 5, 12*time.Hour),
	}

	results := r.RankWithProfile("what do you remember", cands, ProfileStandard)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Final > results[i-1].Final {
			t.Errorf("results not sorted: %v > %v at %d", results[i].Final, results[i-1].Final, i)
		}
	}
	if results[0].Item.ID != "high" {
		t.Errorf("expected high first, got %s", results[0].Item.ID)
	}
}

func TestRank_StableTies(t *testing.T) {
	r := NewRanker(DefaultConfig())
	now := time.Now()

	// Identical candidates except for id: scores tie exactly.
	mk := func(id string) Candidate {
		return Candidate{
			Item: &core.MemoryItem{
				ID: id, Importance: 5, Category: core.CategoryGeneral,
				CreatedAt: now.Add(-time.Hour), LastAccessedAt: now, AccessCount: 3,
			},
			BaseScore: 0.5,
		}
	}

	results := r.RankWithProfile("query", []Candidate{mk("first"), mk("second"), mk("third")}, ProfileStandard)
	order := []string{results[0].Item.ID, results[1].Item.ID, results[2].Item.ID}
	if order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("ties must keep input order, got %v", order)
	}
}

func TestRank_Breakdown(t *testing.T) {
	r := NewRanker(DefaultConfig())

	results := r.RankWithProfile("how do you feel",
		[]Candidate{candidate("a", 0.7, 8, core.CategoryEmotion, 10, time.Hour)},
		ProfileEmotional)

	res := results[0]
	if res.Profile != ProfileEmotional {
		t.Errorf("expected emotional profile, got %q", res.Profile)
	}
	if res.Components.Similarity != 0.7 {
		t.Errorf("similarity should be passed through, got %v", res.Components.Similarity)
	}
	if res.Components.Category != 1.0 {
		t.Errorf("query keyword should match emotion category, got %v", res.Components.Category)
	}
	w := res.Weights
	recomputed := w.Similarity*res.Components.Similarity +
		w.Recency*res.Components.Recency +
		w.Importance*res.Components.Importance +
		w.Frequency*res.Components.Frequency +
		w.Category*res.Components.Category
	if diff := recomputed - res.Final; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("breakdown does not reproduce final score: %v vs %v", recomputed, res.Final)
	}
}

func TestInferProfile(t *testing.T) {
	r := NewRanker(DefaultConfig())

	cases := map[string]Profile{
		"how are you feeling today?":        ProfileEmotional,
		"what happened recently":            ProfileTemporal,
		"what is the most important thing":  ProfileImportance,
		"what do I usually order":           ProfileAccess,
		"tell me about quantum computing":   ProfileSemantic,
		"what is the capital of france":     ProfileStandard,
	}

	for query, want := range cases {
		if got := r.InferProfile(query); got != want {
			t.Errorf("InferProfile(%q) = %q, want %q", query, got, want)
		}
	}
}

func TestRecencyShortWindowBoost(t *testing.T) {
	r := NewRanker(DefaultConfig())

	veryRecent := r.recencyScore(time.Now().Add(-5 * time.Minute))
	pastWindow := r.recencyScore(time.Now().Add(-2 * time.Hour))
	if veryRecent <= pastWindow {
		t.Errorf("very recent items should score higher: %v <= %v", veryRecent, pastWindow)
	}
	if veryRecent > 1.0 {
		t.Errorf("recency must stay capped at 1.0, got %v", veryRecent)
	}
}

func TestUnknownProfileFallsBack(t *testing.T) {
	r := NewRanker(DefaultConfig())
	results := r.RankWithProfile("q",
		[]Candidate{candidate("a", 0.5, 5, core.CategoryFact, 2, time.Hour)},
		Profile("made-up"))
	if results[0].Weights != DefaultConfig().Profiles[ProfileStandard] {
		t.Error("unknown profile should fall back to standard weights")
	}
}
