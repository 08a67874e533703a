package harness

import "github.com/roach88/loregate/internal/ir"

// TurnRecord is what one scenario turn produced.
type TurnRecord struct {
	Turn    int               `json:"turn"`
	Message string            `json:"message"`
	Entries []ir.LogEntry     `json:"entries"`
	Tags    []string          `json:"tags"`
	Intent  string            `json:"intent,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Passed reports whether an entry with the given name passed in this turn.
func (r TurnRecord) Passed(name string) bool {
	for _, e := range r.Entries {
		if e.Name == name && e.Passed {
			return true
		}
	}
	return false
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every turn expectation and assertion holds.
	Pass bool `json:"pass"`

	// Session is the session token the turns ran under.
	Session string `json:"session"`

	// Turns holds one record per played turn, in order.
	Turns []TurnRecord `json:"turns"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(session string) *Result {
	return &Result{
		Pass:    true,
		Session: session,
		Turns:   []TurnRecord{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTurn records a finished turn.
func (r *Result) AddTurn(res *TurnRecord) {
	r.Turns = append(r.Turns, *res)
}
