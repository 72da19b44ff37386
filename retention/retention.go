// Package retention converts a memory item's metadata into a bounded
// retention score and a recommended lifecycle action. Scoring is
// side-effect-free: applying an action is the caller's responsibility.
package retention

import (
	"math"
	"time"

	"github.com/embermind/recall/core"
)

// Action is the recommended lifecycle action for a score.
type Action string

const (
	ActionBoost       Action = "boost"
	ActionKeep        Action = "keep"
	ActionConsolidate Action = "consolidate"
	ActionDecay       Action = "decay"
	ActionArchive     Action = "archive"
)

// Weights are the factor weights of the retention score.
type Weights struct {
	Importance float64 `yaml:"importance"`
	Frequency  float64 `yaml:"frequency"`
	Recency    float64 `yaml:"recency"`
}

// Thresholds partition [0,1] into the five action bands. A score at or
// above Boost maps to boost, at or above Keep to keep, and so on down
// to archive below Decay.
type Thresholds struct {
	Boost       float64 `yaml:"boost"`
	Keep        float64 `yaml:"keep"`
	Consolidate float64 `yaml:"consolidate"`
	Decay       float64 `yaml:"decay"`
}

// Config tunes the scorer. The linear importance weight and the
// importance-adaptive half-life are deliberately independent knobs;
// set HalfLifeBoost to 0 to decouple decay rate from importance.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`

	// ScoreFloor keeps every valid item's score strictly above zero.
	ScoreFloor float64 `yaml:"score_floor"`

	// FrequencyCap is the access count at which the log-scaled
	// frequency factor saturates at 1.0.
	FrequencyCap int `yaml:"frequency_cap"`

	// BaseHalfLifeHours is the temporal-decay half-life for the lowest
	// importance items.
	BaseHalfLifeHours float64 `yaml:"base_half_life_hours"`

	// HalfLifeBoost scales how much high importance slows decay:
	// halfLife = base * (1 + HalfLifeBoost * normalizedImportance).
	HalfLifeBoost float64 `yaml:"half_life_boost"`

	// CategoryMultipliers adjust the final score per category.
	// Protected categories carry multipliers above 1.0, routine logs
	// below 1.0. Unlisted categories use 1.0.
	CategoryMultipliers map[core.Category]float64 `yaml:"category_multipliers"`
}

// DefaultConfig returns the stock scorer tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Importance: 0.35,
			Frequency:  0.30,
			Recency:    0.30,
		},
		Thresholds: Thresholds{
			Boost:       0.80,
			Keep:        0.60,
			Consolidate: 0.40,
			Decay:       0.20,
		},
		ScoreFloor:        0.05,
		FrequencyCap:      100,
		BaseHalfLifeHours: 72,
		HalfLifeBoost:     2.0,
		CategoryMultipliers: map[core.Category]float64{
			core.CategoryRelationshipMoment: 1.30,
			core.CategoryEmotion:            1.20,
			core.CategoryInsight:            1.10,
			core.CategoryPreference:         1.05,
			core.CategoryEventLog:           0.80,
		},
	}
}

// Record is a transient scoring result attached to a memory snapshot.
type Record struct {
	MemoryID string
	Score    float64
	Action   Action
}

// Scorer computes retention scores and actions.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// NewScorer creates a scorer with the given config.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg, now: time.Now}
}

// Score returns the item's retention score in [0,1]: a weighted sum of
// normalized importance, log-scaled access frequency, and exponential
// temporal decay, multiplied by the category multiplier and clamped to
// the configured floor.
func (s *Scorer) Score(item *core.MemoryItem) float64 {
	imp := normalizeImportance(item.Importance)
	freq := s.frequencyScore(item.AccessCount)
	rec := s.recencyScore(item.LastAccessedAt, imp)

	raw := s.cfg.Weights.Importance*imp +
		s.cfg.Weights.Frequency*freq +
		s.cfg.Weights.Recency*rec +
		s.cfg.ScoreFloor

	raw *= s.categoryMultiplier(item.Category)

	return clamp(raw, s.cfg.ScoreFloor, 1.0)
}

// ActionFor maps a score to one of the five actions. It is a pure
// function of the score.
func (s *Scorer) ActionFor(score float64) Action {
	t := s.cfg.Thresholds
	switch {
	case score >= t.Boost:
		return ActionBoost
	case score >= t.Keep:
		return ActionKeep
	case score >= t.Consolidate:
		return ActionConsolidate
	case score >= t.Decay:
		return ActionDecay
	default:
		return ActionArchive
	}
}

// Evaluate scores the item and returns a transient record.
func (s *Scorer) Evaluate(item *core.MemoryItem) Record {
	score := s.Score(item)
	return Record{
		MemoryID: item.ID,
		Score:    score,
		Action:   s.ActionFor(score),
	}
}

// SuggestImportanceUpdate returns the bounded importance an item should
// move to: exactly one step up on boost, one step down on decay or
// archive, unchanged otherwise. Importance never jumps.
func (s *Scorer) SuggestImportanceUpdate(item *core.MemoryItem) int {
	switch s.ActionFor(s.Score(item)) {
	case ActionBoost:
		return core.ClampImportance(item.Importance + 1)
	case ActionDecay, ActionArchive:
		return core.ClampImportance(item.Importance - 1)
	default:
		return item.Importance
	}
}

// BatchSummary is the count-by-action result of a batch evaluation.
type BatchSummary struct {
	Total    int
	ByAction map[Action]int
}

// EvaluateBatch scores every item and reports counts per action. This
// is advisory only; no item is mutated.
func (s *Scorer) EvaluateBatch(items []*core.MemoryItem) ([]Record, BatchSummary) {
	records := make([]Record, 0, len(items))
	summary := BatchSummary{ByAction: make(map[Action]int)}

	for _, item := range items {
		rec := s.Evaluate(item)
		records = append(records, rec)
		summary.ByAction[rec.Action]++
		summary.Total++
	}
	return records, summary
}

func normalizeImportance(importance int) float64 {
	return float64(core.ClampImportance(importance)-core.MinImportance) /
		float64(core.MaxImportance-core.MinImportance)
}

func (s *Scorer) frequencyScore(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	saturation := s.cfg.FrequencyCap
	if saturation <= 1 {
		saturation = 100
	}
	score := math.Log1p(float64(accessCount)) / math.Log1p(float64(saturation))
	return math.Min(score, 1.0)
}

// recencyScore applies an exponential half-life keyed to importance:
// high-importance items decay slower.
func (s *Scorer) recencyScore(lastAccessed time.Time, normalizedImp float64) float64 {
	halfLife := s.cfg.BaseHalfLifeHours * (1 + s.cfg.HalfLifeBoost*normalizedImp)
	if halfLife <= 0 {
		return 0
	}
	hours := s.now().Sub(lastAccessed).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Pow(2, -hours/halfLife)
}

func (s *Scorer) categoryMultiplier(category core.Category) float64 {
	if mult, ok := s.cfg.CategoryMultipliers[category]; ok {
		return mult
	}
	return 1.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
