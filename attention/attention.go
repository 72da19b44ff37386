// Package attention re-ranks candidate memory items for a query using
// a weighted multi-factor model layered on top of a base similarity
// score. Every result carries its component scores and the applied
// weights for explainability.
package attention

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/embermind/recall/core"
)

// Profile names a weight set for the ranker.
type Profile string

const (
	ProfileStandard   Profile = "standard"
	ProfileSemantic   Profile = "semantic"
	ProfileTemporal   Profile = "temporal"
	ProfileImportance Profile = "importance"
	ProfileAccess     Profile = "access"
	ProfileEmotional  Profile = "emotional"
)

// Weights are the five factor weights of the attention score.
type Weights struct {
	Similarity float64 `yaml:"similarity"`
	Recency    float64 `yaml:"recency"`
	Importance float64 `yaml:"importance"`
	Frequency  float64 `yaml:"frequency"`
	Category   float64 `yaml:"category"`
}

// Config tunes the ranker.
type Config struct {
	// Profiles maps profile names to weight sets. Missing profiles
	// fall back to the standard weights.
	Profiles map[Profile]Weights `yaml:"profiles"`

	// RecencyHalfLifeHours is the exponential decay half-life of the
	// recency factor.
	RecencyHalfLifeHours float64 `yaml:"recency_half_life_hours"`

	// RecentBoostWindow is how long an item counts as "very recent"
	// and receives the short-window boost.
	RecentBoostWindow time.Duration `yaml:"recent_boost_window"`

	// RecentBoost is added to the recency factor inside the boost
	// window (result still capped at 1.0).
	RecentBoost float64 `yaml:"recent_boost"`

	// FrequencyCap is the access count at which the frequency factor
	// saturates.
	FrequencyCap int `yaml:"frequency_cap"`

	// CategoryKeywords maps each category to the query keywords that
	// make it relevant.
	CategoryKeywords map[core.Category][]string `yaml:"category_keywords"`
}

// DefaultConfig returns the stock ranker tuning.
func DefaultConfig() Config {
	return Config{
		Profiles: map[Profile]Weights{
			ProfileStandard:   {Similarity: 0.40, Recency: 0.20, Importance: 0.20, Frequency: 0.10, Category: 0.10},
			ProfileSemantic:   {Similarity: 0.65, Recency: 0.10, Importance: 0.10, Frequency: 0.05, Category: 0.10},
			ProfileTemporal:   {Similarity: 0.20, Recency: 0.50, Importance: 0.10, Frequency: 0.10, Category: 0.10},
			ProfileImportance: {Similarity: 0.20, Recency: 0.10, Importance: 0.50, Frequency: 0.10, Category: 0.10},
			ProfileAccess:     {Similarity: 0.20, Recency: 0.10, Importance: 0.10, Frequency: 0.50, Category: 0.10},
			ProfileEmotional:  {Similarity: 0.25, Recency: 0.15, Importance: 0.15, Frequency: 0.05, Category: 0.40},
		},
		RecencyHalfLifeHours: 24,
		RecentBoostWindow:    time.Hour,
		RecentBoost:          0.20,
		FrequencyCap:         100,
		CategoryKeywords: map[core.Category][]string{
			core.CategoryEmotion:            {"feel", "feeling", "felt", "emotion", "mood", "happy", "sad", "upset"},
			core.CategoryRelationshipMoment: {"friend", "family", "partner", "relationship", "together", "anniversary"},
			core.CategoryPreference:         {"prefer", "like", "favorite", "hate", "love", "want"},
			core.CategoryFact:               {"what", "when", "where", "who", "fact", "remember"},
			core.CategoryInsight:            {"why", "realize", "understand", "insight", "learned"},
			core.CategoryEventLog:           {"yesterday", "today", "earlier", "happened", "did"},
		},
	}
}

// Candidate pairs a memory item with its externally computed base
// similarity for the query.
type Candidate struct {
	Item      *core.MemoryItem
	BaseScore float64
}

// Components are the per-factor scores of one ranked result.
type Components struct {
	Similarity float64
	Recency    float64
	Importance float64
	Frequency  float64
	Category   float64
}

// Result is one ranked item with its full score breakdown.
type Result struct {
	Item       *core.MemoryItem
	Final      float64
	Components Components
	Weights    Weights
	Profile    Profile
}

// Ranker re-ranks candidates for a query.
type Ranker struct {
	cfg Config
	now func() time.Time
}

// NewRanker creates a ranker with the given config.
func NewRanker(cfg Config) *Ranker {
	return &Ranker{cfg: cfg, now: time.Now}
}

// Rank orders candidates for the query, inferring the weight profile
// from the query's keywords.
func (r *Ranker) Rank(query string, candidates []Candidate) []Result {
	return r.RankWithProfile(query, candidates, r.InferProfile(query))
}

// RankWithProfile orders candidates using an explicit profile. Output
// is sorted descending by final score; ties keep input order so
// results are deterministic.
func (r *Ranker) RankWithProfile(query string, candidates []Candidate, profile Profile) []Result {
	weights := r.weightsFor(profile)
	queryWords := tokenize(query)

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		comp := Components{
			Similarity: clamp01(cand.BaseScore),
			Recency:    r.recencyScore(cand.Item.LastAccessedAt),
			Importance: normalizeImportance(cand.Item.Importance),
			Frequency:  r.frequencyScore(cand.Item.AccessCount),
			Category:   r.categoryRelevance(queryWords, cand.Item.Category),
		}

		final := weights.Similarity*comp.Similarity +
			weights.Recency*comp.Recency +
			weights.Importance*comp.Importance +
			weights.Frequency*comp.Frequency +
			weights.Category*comp.Category

		results = append(results, Result{
			Item:       cand.Item,
			Final:      final,
			Components: comp,
			Weights:    weights,
			Profile:    profile,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Final > results[j].Final
	})
	return results
}

// InferProfile picks a weight profile from query keywords. It is a
// lightweight classifier: the first matching rule wins, defaulting to
// the standard profile.
func (r *Ranker) InferProfile(query string) Profile {
	q := strings.ToLower(query)

	rules := []struct {
		profile  Profile
		keywords []string
	}{
		{ProfileEmotional, []string{"feel", "feeling", "emotion", "mood"}},
		{ProfileTemporal, []string{"recently", "yesterday", "today", "last time", "earlier"}},
		{ProfileImportance, []string{"important", "crucial", "critical", "essential"}},
		{ProfileAccess, []string{"usual", "always", "often", "frequently"}},
		{ProfileSemantic, []string{"about", "related to", "similar", "like"}},
	}

	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.profile
			}
		}
	}
	return ProfileStandard
}

func (r *Ranker) weightsFor(profile Profile) Weights {
	if w, ok := r.cfg.Profiles[profile]; ok {
		return w
	}
	if w, ok := r.cfg.Profiles[ProfileStandard]; ok {
		return w
	}
	return DefaultConfig().Profiles[ProfileStandard]
}

// recencyScore decays exponentially with time since last access, with
// a fixed boost for very recent items.
func (r *Ranker) recencyScore(lastAccessed time.Time) float64 {
	age := r.now().Sub(lastAccessed)
	if age < 0 {
		age = 0
	}

	halfLife := r.cfg.RecencyHalfLifeHours
	if halfLife <= 0 {
		halfLife = 24
	}
	score := math.Pow(2, -age.Hours()/halfLife)

	if age <= r.cfg.RecentBoostWindow {
		score += r.cfg.RecentBoost
	}
	return clamp01(score)
}

func (r *Ranker) frequencyScore(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	saturation := r.cfg.FrequencyCap
	if saturation <= 1 {
		saturation = 100
	}
	return math.Min(math.Log1p(float64(accessCount))/math.Log1p(float64(saturation)), 1.0)
}

// categoryRelevance scores how well the query's keywords match the
// candidate's category: 1.0 on a keyword hit, 0.3 neutral baseline.
func (r *Ranker) categoryRelevance(queryWords map[string]bool, category core.Category) float64 {
	keywords, ok := r.cfg.CategoryKeywords[category]
	if !ok {
		return 0.3
	}
	for _, kw := range keywords {
		if queryWords[kw] {
			return 1.0
		}
	}
	return 0.3
}

func tokenize(query string) map[string]bool {
	words := strings.Fields(strings.ToLower(query))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,!?;:\"'")] = true
	}
	return set
}

func normalizeImportance(importance int) float64 {
	return float64(core.ClampImportance(importance)-core.MinImportance) /
		float64(core.MaxImportance-core.MinImportance)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
