package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stateres/internal/ir"
)

// Snapshot captures what a scenario resolved to.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	RoomVersion  string
	Result       *Result
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. The resolution id is random and left out.
func (s *Snapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"room_version":  s.RoomVersion,
	}

	outcomes := make([]any, len(s.Result.Outcomes))
	for i, o := range s.Result.Outcomes {
		m := map[string]any{"driver": o.Driver}
		if o.Failed() {
			m["error_code"] = o.ErrorCode
		} else {
			m["slots"] = len(o.State)
		}
		outcomes[i] = m
	}
	out["outcomes"] = outcomes

	if len(s.Result.State) > 0 {
		state := make([]any, len(s.Result.State))
		for i, e := range s.Result.State {
			state[i] = []any{e.Type, e.StateKey, e.EventID}
		}
		out["state"] = state
		out["state_hash"] = s.Result.StateHash
	}

	if tr := s.Result.Trace; tr != nil {
		decisions := make([]any, len(tr.Decisions))
		for i, d := range tr.Decisions {
			m := map[string]any{
				"event_id": d.EventID,
				"pass":     d.Pass,
				"verdict":  d.Verdict.String(),
			}
			if d.Reason != "" {
				m["reason"] = d.Reason
			}
			decisions[i] = m
		}
		out["trace"] = map[string]any{
			"unconflicted":    tr.Unconflicted,
			"conflicted":      tr.Conflicted,
			"authority_order": tr.AuthorityOrder,
			"mainline":        tr.Mainline,
			"ordinary_order":  tr.OrdinaryOrder,
			"decisions":       decisions,
		}
	}
	return out
}

// RunWithGolden executes a scenario and compares its outcome against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcome doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := GoldenJSON(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}

// GoldenJSON renders the golden snapshot of a scenario's result.
func GoldenJSON(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		RoomVersion:  scenario.RoomVersion,
		Result:       result,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
