// Package assoc tracks co-access and user feedback to build a
// strength-weighted association graph between memory items and to
// adjust their importance over time. Association targets are weak
// references: the learner only holds ids and tolerates missing items.
package assoc

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Association is a learned link between two co-accessed items. The
// pair is unordered: ids are stored in lexicographic order.
type Association struct {
	A                string    `json:"a"`
	B                string    `json:"b"`
	Strength         float64   `json:"strength"`
	CoAccessCount    int       `json:"co_access_count"`
	CreatedAt        time.Time `json:"created_at"`
	LastReinforcedAt time.Time `json:"last_reinforced_at"`
}

// Neighbor is one associated item returned by Associated.
type Neighbor struct {
	ID            string
	Strength      float64
	CoAccessCount int
}

// Feedback is a user judgement on a retrieved memory.
type Feedback string

const (
	FeedbackHelpful    Feedback = "helpful"
	FeedbackNotHelpful Feedback = "not_helpful"
	FeedbackRedundant  Feedback = "redundant"
	FeedbackOutdated   Feedback = "outdated"
	FeedbackIncorrect  Feedback = "incorrect"
)

// FeedbackEvent is one recorded feedback entry. Events carry ids so a
// replayed event is recognized and ignored, keeping net adjustment
// replay-safe.
type FeedbackEvent struct {
	EventID    string    `json:"event_id"`
	MemoryID   string    `json:"memory_id"`
	Kind       Feedback  `json:"kind"`
	Adjustment int       `json:"adjustment"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Config tunes the learner.
type Config struct {
	// Window is how long two single accesses count as co-accessed.
	Window time.Duration `yaml:"window"`

	// InitialStrength is the strength of a newly created association.
	InitialStrength float64 `yaml:"initial_strength"`

	// ReinforceIncrement is added to strength on each co-access,
	// capped at 1.0.
	ReinforceIncrement float64 `yaml:"reinforce_increment"`

	// DecayHalfLifeHours keys the exponential decay factor to hours
	// since last reinforcement.
	DecayHalfLifeHours float64 `yaml:"decay_half_life_hours"`

	// Floor is the strength below which an association is evicted.
	Floor float64 `yaml:"floor"`

	// FeedbackDeltas maps feedback kinds to importance deltas.
	FeedbackDeltas map[Feedback]int `yaml:"feedback_deltas"`
}

// DefaultConfig returns the stock learner tuning.
func DefaultConfig() Config {
	return Config{
		Window:             60 * time.Second,
		InitialStrength:    0.30,
		ReinforceIncrement: 0.10,
		DecayHalfLifeHours: 7 * 24,
		Floor:              0.05,
		FeedbackDeltas: map[Feedback]int{
			FeedbackHelpful:    1,
			FeedbackNotHelpful: -1,
			FeedbackRedundant:  -1,
			FeedbackOutdated:   -2,
			FeedbackIncorrect:  -3,
		},
	}
}

type accessEvent struct {
	id string
	at time.Time
}

// Learner owns association lifetime. All state is guarded by one
// mutex; no lock is held across I/O.
type Learner struct {
	mu       sync.Mutex
	cfg      Config
	recent   []accessEvent
	graph    map[[2]string]*Association
	feedback map[string][]FeedbackEvent
	seen     map[string]bool
	now      func() time.Time
}

// NewLearner creates a learner with the given config.
func NewLearner(cfg Config) *Learner {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.InitialStrength <= 0 {
		cfg.InitialStrength = DefaultConfig().InitialStrength
	}
	if cfg.ReinforceIncrement <= 0 {
		cfg.ReinforceIncrement = DefaultConfig().ReinforceIncrement
	}
	if cfg.DecayHalfLifeHours <= 0 {
		cfg.DecayHalfLifeHours = DefaultConfig().DecayHalfLifeHours
	}
	if cfg.Floor <= 0 {
		cfg.Floor = DefaultConfig().Floor
	}
	if cfg.FeedbackDeltas == nil {
		cfg.FeedbackDeltas = DefaultConfig().FeedbackDeltas
	}
	return &Learner{
		cfg:      cfg,
		graph:    make(map[[2]string]*Association),
		feedback: make(map[string][]FeedbackEvent),
		seen:     make(map[string]bool),
		now:      time.Now,
	}
}

// OnAccess records a single item access. Any item accessed within the
// sliding window before this one is treated as co-accessed with it.
func (l *Learner) OnAccess(id string, query string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneWindow(now)

	for _, ev := range l.recent {
		if ev.id != id {
			l.reinforcePair(ev.id, id, now)
		}
	}
	l.recent = append(l.recent, accessEvent{id: id, at: now})
}

// OnCoAccess records that a set of items was accessed together, e.g.
// returned in the same retrieval. Every pair is reinforced.
func (l *Learner) OnCoAccess(ids []string, query string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] != ids[j] {
				l.reinforcePair(ids[i], ids[j], now)
			}
		}
	}
}

// Associated returns the neighbors of id with strength >= minStrength,
// sorted by strength descending, at most limit entries. Unknown ids
// yield an empty result.
func (l *Learner) Associated(id string, minStrength float64, limit int) []Neighbor {
	l.mu.Lock()
	defer l.mu.Unlock()

	var neighbors []Neighbor
	for key, a := range l.graph {
		if a.Strength < minStrength {
			continue
		}
		switch id {
		case key[0]:
			neighbors = append(neighbors, Neighbor{ID: key[1], Strength: a.Strength, CoAccessCount: a.CoAccessCount})
		case key[1]:
			neighbors = append(neighbors, Neighbor{ID: key[0], Strength: a.Strength, CoAccessCount: a.CoAccessCount})
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Strength != neighbors[j].Strength {
			return neighbors[i].Strength > neighbors[j].Strength
		}
		return neighbors[i].ID < neighbors[j].ID
	})

	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

// Association returns the association between two ids, if any.
func (l *Learner) Association(a, b string) (Association, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assoc, ok := l.graph[pairKey(a, b)]
	if !ok {
		return Association{}, false
	}
	return *assoc, true
}

// RecordFeedback records a feedback event and returns the importance
// adjustment the caller should apply. Replaying an event id that was
// already recorded returns 0.
func (l *Learner) RecordFeedback(eventID, memoryID string, kind Feedback) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if eventID == "" {
		eventID = uuid.New().String()
	}
	if l.seen[eventID] {
		return 0
	}
	l.seen[eventID] = true

	delta := l.cfg.FeedbackDeltas[kind]
	l.feedback[memoryID] = append(l.feedback[memoryID], FeedbackEvent{
		EventID:    eventID,
		MemoryID:   memoryID,
		Kind:       kind,
		Adjustment: delta,
		RecordedAt: l.now(),
	})
	return delta
}

// FeedbackHistory returns the recorded events for a memory id.
func (l *Learner) FeedbackHistory(memoryID string) []FeedbackEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.feedback[memoryID]
	out := make([]FeedbackEvent, len(events))
	copy(out, events)
	return out
}

// NetAdjustment sums all recorded feedback deltas for a memory id.
func (l *Learner) NetAdjustment(memoryID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	net := 0
	for _, ev := range l.feedback[memoryID] {
		net += ev.Adjustment
	}
	return net
}

// DecaySummary reports the outcome of one decay pass.
type DecaySummary struct {
	Decayed int
	Evicted int
}

// Decay multiplies every association's strength by an exponential
// factor keyed to hours since last reinforcement and evicts
// associations that fall below the floor. Decay never increases
// strength.
func (l *Learner) Decay() DecaySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var summary DecaySummary

	for key, a := range l.graph {
		hours := now.Sub(a.LastReinforcedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		factor := math.Pow(2, -hours/l.cfg.DecayHalfLifeHours)
		a.Strength *= factor
		summary.Decayed++

		if a.Strength < l.cfg.Floor {
			delete(l.graph, key)
			summary.Evicted++
		}
	}
	return summary
}

// Size reports the number of associations in the graph.
func (l *Learner) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.graph)
}

// Snapshot returns a copy of every association, for persistence.
func (l *Learner) Snapshot() []Association {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Association, 0, len(l.graph))
	for _, a := range l.graph {
		out = append(out, *a)
	}
	return out
}

// Restore loads associations into the graph, replacing any existing
// entry for the same pair. Used to rebuild state after a restart.
func (l *Learner) Restore(assocs []Association) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range assocs {
		restored := a
		l.graph[pairKey(a.A, a.B)] = &restored
	}
}

// reinforcePair creates or strengthens the association between two
// ids. Caller holds the lock.
func (l *Learner) reinforcePair(a, b string, now time.Time) {
	key := pairKey(a, b)

	assoc, ok := l.graph[key]
	if !ok {
		l.graph[key] = &Association{
			A:                key[0],
			B:                key[1],
			Strength:         l.cfg.InitialStrength,
			CoAccessCount:    1,
			CreatedAt:        now,
			LastReinforcedAt: now,
		}
		return
	}

	assoc.Strength = math.Min(assoc.Strength+l.cfg.ReinforceIncrement, 1.0)
	assoc.CoAccessCount++
	assoc.LastReinforcedAt = now
}

// pruneWindow drops accesses older than the sliding window. Caller
// holds the lock.
func (l *Learner) pruneWindow(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	keep := l.recent[:0]
	for _, ev := range l.recent {
		if ev.at.After(cutoff) {
			keep = append(keep, ev)
		}
	}
	l.recent = keep
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
