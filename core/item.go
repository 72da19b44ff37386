// Package core defines the shared domain types for the recall engine:
// memory items, tiers, categories, and the error taxonomy used across
// the cache, retention, attention, association, and assembly packages.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the storage class of a memory item.
type Tier string

const (
	// TierVolatile is the fast in-process tier. Bounded capacity,
	// LRU-evicted, items decay within minutes unless reinforced.
	TierVolatile Tier = "volatile"

	// TierDurable is the externally backed tier. Items survive restarts
	// and are retention-gated on every consolidation pass.
	TierDurable Tier = "durable"

	// TierStable is the externally backed long-term tier, reserved for
	// high-importance, highly reinforced items.
	TierStable Tier = "stable"
)

// ValidTiers are the recognized tier values.
var ValidTiers = map[Tier]bool{
	TierVolatile: true,
	TierDurable:  true,
	TierStable:   true,
}

// Category tags a memory item with the kind of content it holds.
// Categories drive retention multipliers and attention relevance.
type Category string

const (
	CategoryFact               Category = "fact"
	CategoryEmotion            Category = "emotion"
	CategoryInsight            Category = "insight"
	CategoryPreference         Category = "preference"
	CategoryRelationshipMoment Category = "relationship_moment"
	CategoryEventLog           Category = "event_log"
	CategoryGeneral            Category = "general"
)

// ValidCategories are the allowed category values.
var ValidCategories = map[Category]bool{
	CategoryFact:               true,
	CategoryEmotion:            true,
	CategoryInsight:            true,
	CategoryPreference:         true,
	CategoryRelationshipMoment: true,
	CategoryEventLog:           true,
	CategoryGeneral:            true,
}

// Importance bounds for memory items.
const (
	MinImportance = 1
	MaxImportance = 10
)

// MemoryItem is a unit of stored content with access metadata.
//
// Invariants: Importance in [1,10], AccessCount >= 1,
// LastAccessedAt >= CreatedAt. Items are never physically destroyed on
// decay -- they are demoted or archived to cold storage.
type MemoryItem struct {
	ID                 string    `json:"id"`
	Content            string    `json:"content"`
	Tier               Tier      `json:"tier"`
	Importance         int       `json:"importance"`
	Category           Category  `json:"category"`
	CreatedAt          time.Time `json:"created_at"`
	LastAccessedAt     time.Time `json:"last_accessed_at"`
	AccessCount        int       `json:"access_count"`
	ReinforcementCount int       `json:"reinforcement_count"`
	Embedding          []float32 `json:"embedding,omitempty"`
	Meta               Metadata  `json:"meta"`
}

// NewMemoryItem creates a validated memory item. The tier is left for
// the tiered store to assign on placement.
func NewMemoryItem(content string, importance int, category Category) (*MemoryItem, error) {
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if importance < MinImportance || importance > MaxImportance {
		return nil, &ValidationError{Field: "importance", Reason: "must be in [1,10]"}
	}
	if !ValidCategories[category] {
		return nil, &ValidationError{Field: "category", Reason: "unknown category " + string(category)}
	}

	now := time.Now()
	return &MemoryItem{
		ID:             uuid.New().String(),
		Content:        content,
		Importance:     importance,
		Category:       category,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    1,
	}, nil
}

// Touch records a read: bumps the access count and refreshes the
// last-accessed timestamp.
func (m *MemoryItem) Touch() {
	m.AccessCount++
	m.LastAccessedAt = time.Now()
}

// Reinforce records an explicit reinforcement, which also counts as an
// access and resets the volatile decay clock.
func (m *MemoryItem) Reinforce() {
	m.ReinforcementCount++
	m.Touch()
}

// AdjustImportance nudges importance by delta, clamped to [1,10].
func (m *MemoryItem) AdjustImportance(delta int) {
	m.Importance = ClampImportance(m.Importance + delta)
}

// ClampImportance bounds v to the valid importance range.
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// Clone returns a deep copy of the item. Snapshots handed to scorers
// and rankers are clones so scoring stays side-effect-free.
func (m *MemoryItem) Clone() *MemoryItem {
	clone := *m
	if m.Embedding != nil {
		clone.Embedding = make([]float32, len(m.Embedding))
		copy(clone.Embedding, m.Embedding)
	}
	clone.Meta = m.Meta.Clone()
	return &clone
}
