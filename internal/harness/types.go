package harness

import "github.com/roach88/stateres/internal/stateres"

// Outcome is what one driver produced.
type Outcome struct {
	Driver    string       `json:"driver"`
	State     []StateEntry `json:"state,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`

	state stateres.StateMap
}

// Failed reports whether the driver returned an error.
func (o *Outcome) Failed() bool {
	return o.Error != ""
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Outcomes holds each driver's result in run order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the resolved state the drivers agreed on, if any.
	State []StateEntry `json:"state,omitempty"`

	// StateHash fingerprints State.
	StateHash string `json:"state_hash,omitempty"`

	// ResolutionID is the id under which State was recorded.
	ResolutionID string `json:"resolution_id,omitempty"`

	// Trace is the atomic driver's decision record, when it ran and
	// succeeded.
	Trace *stateres.Trace `json:"trace,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Outcomes: []Outcome{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Entries lists a state as entries sorted by slot.
func Entries(state stateres.StateMap) []StateEntry {
	keys := state.SortedKeys()
	out := make([]StateEntry, len(keys))
	for i, k := range keys {
		out[i] = StateEntry{Type: k.Type, StateKey: k.StateKey, EventID: state[k]}
	}
	return out
}
