// Package window assembles bounded context windows from core memories,
// prior summaries, archival lookups, and recent dialogue. Windows are
// rebuilt per call, never mutated in place; the only session state a
// rebuild advances is the compaction checkpoint.
package window

import (
	"time"
)

// Turn is one dialogue message in a session.
type Turn struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Summary is the output of one compaction pass.
type Summary struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Session is the dialogue history windows are assembled from.
// Checkpoint is the index of the first turn not yet covered by a
// compaction summary; turns before it are excluded from assembly but
// remain in the slice (compaction is additive, not destructive).
type Session struct {
	ID         string    `json:"id"`
	Turns      []Turn    `json:"turns"`
	Checkpoint int       `json:"checkpoint"`
	Summaries  []Summary `json:"summaries"`
}

// Append adds a turn to the session history.
func (s *Session) Append(turn Turn) {
	s.Turns = append(s.Turns, turn)
}

// Live returns the turns not yet covered by a compaction summary.
func (s *Session) Live() []Turn {
	if s.Checkpoint >= len(s.Turns) {
		return nil
	}
	return s.Turns[s.Checkpoint:]
}

// SegmentKind tags where a window segment came from.
type SegmentKind string

const (
	SegmentCore     SegmentKind = "core"
	SegmentSummary  SegmentKind = "summary"
	SegmentArchival SegmentKind = "archival"
	SegmentDialogue SegmentKind = "dialogue"
)

// Segment is one entry of an assembled window.
type Segment struct {
	Kind    SegmentKind `json:"kind"`
	Ref     string      `json:"ref,omitempty"`
	Content string      `json:"content"`
	Tokens  int         `json:"tokens"`
}

// Window is the bounded context handed to the model for one turn.
type Window struct {
	SessionID   string    `json:"session_id"`
	Segments    []Segment `json:"segments"`
	Budget      int       `json:"budget"`
	TokensUsed  int       `json:"tokens_used"`
	Truncated   bool      `json:"truncated"`
	SummaryUsed bool      `json:"summary_used"`
	Degraded    bool      `json:"degraded"`
}

// EstimateTokens is the budget heuristic used throughout assembly:
// roughly four characters per token, never less than one.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
