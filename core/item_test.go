package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewMemoryItem(t *testing.T) {
	item, err := NewMemoryItem("user prefers dark roast coffee", 6, CategoryPreference)
	if err != nil {
		t.Fatalf("NewMemoryItem failed: %v", err)
	}

	if item.ID == "" {
		t.Error("expected generated ID")
	}
	if item.AccessCount != 1 {
		t.Errorf("expected AccessCount=1, got %d", item.AccessCount)
	}
	if item.LastAccessedAt.Before(item.CreatedAt) {
		t.Error("LastAccessedAt must not precede CreatedAt")
	}
}

func TestNewMemoryItem_Validation(t *testing.T) {
	cases := []struct {
		name       string
		content    string
		importance int
		category   Category
	}{
		{"empty content", "", 5, CategoryFact},
		{"importance too low", "x", 0, CategoryFact},
		{"importance too high", "x", 11, CategoryFact},
		{"unknown category", "x", 5, Category("gossip")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMemoryItem(tc.content, tc.importance, tc.category)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestTouchAndReinforce(t *testing.T) {
	item, _ := NewMemoryItem("remembers birthday", 7, CategoryRelationshipMoment)
	before := item.LastAccessedAt

	time.Sleep(time.Millisecond)
	item.Touch()
	if item.AccessCount != 2 {
		t.Errorf("expected AccessCount=2, got %d", item.AccessCount)
	}
	if !item.LastAccessedAt.After(before) {
		t.Error("Touch should advance LastAccessedAt")
	}

	item.Reinforce()
	if item.ReinforcementCount != 1 {
		t.Errorf("expected ReinforcementCount=1, got %d", item.ReinforcementCount)
	}
	if item.AccessCount != 3 {
		t.Errorf("reinforcement should count as access, got %d", item.AccessCount)
	}
}

func TestAdjustImportance_Bounded(t *testing.T) {
	item, _ := NewMemoryItem("x", 10, CategoryFact)
	item.AdjustImportance(1)
	if item.Importance != 10 {
		t.Errorf("importance must not exceed 10, got %d", item.Importance)
	}

	item.Importance = 1
	item.AdjustImportance(-1)
	if item.Importance != 1 {
		t.Errorf("importance must not drop below 1, got %d", item.Importance)
	}
}

func TestClone_Independent(t *testing.T) {
	item, _ := NewMemoryItem("x", 5, CategoryFact)
	item.Embedding = []float32{0.1, 0.2}
	item.Meta.Extra = map[string]any{"k": "v"}

	clone := item.Clone()
	clone.Embedding[0] = 9
	clone.Meta.Extra["k"] = "other"
	clone.Touch()

	if item.Embedding[0] == 9 {
		t.Error("clone shares embedding slice")
	}
	if item.Meta.Extra["k"] == "other" {
		t.Error("clone shares metadata map")
	}
	if item.AccessCount != 1 {
		t.Error("clone mutation leaked into original")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	bse := &BackingStoreError{Op: "put", Err: errors.New("disk full")}
	if !errors.As(error(bse), new(*BackingStoreError)) {
		t.Error("BackingStoreError should match errors.As")
	}

	ese := &ExternalServiceError{Service: "embedder", Attempts: 2, Err: ErrNotFound}
	if !errors.Is(ese, ErrNotFound) {
		t.Error("ExternalServiceError should unwrap to its cause")
	}
}
