package ir

import "maps"

// LogEntry records the outcome of one evaluated unit, gate or shift.
type LogEntry struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Passed   bool           `json:"passed"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TurnLog is the ordered record of everything evaluated during one turn.
type TurnLog struct {
	Session string     `json:"session"`
	Turn    int        `json:"turn"`
	Message string     `json:"message"`
	Entries []LogEntry `json:"entries"`
	Closed  bool       `json:"closed"`
}

// Clone returns a copy that shares nothing mutable with t.
func (t *TurnLog) Clone() *TurnLog {
	out := *t
	out.Entries = make([]LogEntry, len(t.Entries))
	for i, e := range t.Entries {
		e.Metadata = maps.Clone(e.Metadata)
		out.Entries[i] = e
	}
	return &out
}

// PassedNames returns the names of entries that passed, in log order.
func (t *TurnLog) PassedNames() []string {
	var out []string
	for _, e := range t.Entries {
		if e.Passed {
			out = append(out, e.Name)
		}
	}
	return out
}
