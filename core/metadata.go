package core

// Metadata carries the optional fields the engine reads, plus a
// residual free-form map for anything callers want to attach. The
// typed fields give compile-time safety for engine-read values while
// tolerating arbitrary extra data.
type Metadata struct {
	// Source identifies where the content came from (e.g. "dialogue",
	// "summary", "import").
	Source string `json:"source,omitempty"`

	// SessionID ties the item to the conversation it originated in.
	SessionID string `json:"session_id,omitempty"`

	// Core marks never-evicted items that every assembled context
	// window must include.
	Core bool `json:"core,omitempty"`

	// Archived marks items demoted to cold storage on volatile decay.
	// Archived items stay queryable but are excluded from placement.
	Archived bool `json:"archived,omitempty"`

	// Extra holds residual caller-defined fields.
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy with its own Extra map.
func (m Metadata) Clone() Metadata {
	clone := m
	if m.Extra != nil {
		clone.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}
