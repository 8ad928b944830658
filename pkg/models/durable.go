package models

// Position is a layout coordinate for one canvas node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DurableState is the explicitly enumerated projection of the store that
// survives process restarts. Everything else is rebuilt from the backend on
// reconnect.
type DurableState struct {
	// CurrentSessionID is the session the UI last had selected.
	CurrentSessionID string `json:"currentSessionId"`

	// Layouts holds per-session canvas node positions, keyed by session id
	// then node id.
	Layouts map[string]map[string]Position `json:"layouts,omitempty"`

	// ProducedFiles flags sessions that have written design files at least
	// once.
	ProducedFiles map[string]bool `json:"producedFiles,omitempty"`
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// store mutation.
func (d DurableState) Clone() DurableState {
	clone := DurableState{CurrentSessionID: d.CurrentSessionID}
	if d.Layouts != nil {
		clone.Layouts = make(map[string]map[string]Position, len(d.Layouts))
		for sid, nodes := range d.Layouts {
			inner := make(map[string]Position, len(nodes))
			for id, pos := range nodes {
				inner[id] = pos
			}
			clone.Layouts[sid] = inner
		}
	}
	if d.ProducedFiles != nil {
		clone.ProducedFiles = make(map[string]bool, len(d.ProducedFiles))
		for sid, v := range d.ProducedFiles {
			clone.ProducedFiles[sid] = v
		}
	}
	return clone
}
