package stateres

import (
	"github.com/roach88/stateres/internal/ir"
)

// Decision records the Authorizer outcome for one event in a merge pass.
type Decision struct {
	EventID ir.EventID  `json:"event_id"`
	Slot    ir.StateKey `json:"slot"`
	Pass    string      `json:"pass"`
	Verdict Verdict     `json:"verdict"`
	Reason  string      `json:"reason,omitempty"`
}

// Trace is the step-by-step record of one resolution, returned by Explain.
type Trace struct {
	Unconflicted   int          `json:"unconflicted"`
	Conflicted     []ir.EventID `json:"conflicted"`
	AuthorityOrder []ir.EventID `json:"authority_order"`
	Mainline       []ir.EventID `json:"mainline"`
	OrdinaryOrder  []ir.EventID `json:"ordinary_order"`
	Decisions      []Decision   `json:"decisions"`
}

// decide appends a decision. A nil trace records nothing.
func (t *Trace) decide(d Decision) {
	if t == nil {
		return
	}
	t.Decisions = append(t.Decisions, d)
}

// Accepted returns the IDs accepted in a pass, in order.
func (t *Trace) Accepted(pass string) []ir.EventID {
	var ids []ir.EventID
	for _, d := range t.Decisions {
		if d.Pass == pass && d.Verdict == Accept {
			ids = append(ids, d.EventID)
		}
	}
	return ids
}
