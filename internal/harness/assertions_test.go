package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

func okOutcome(driver string, state stateres.StateMap) Outcome {
	return Outcome{Driver: driver, State: Entries(state), state: state}
}

func failedOutcome(driver, code string) Outcome {
	return Outcome{Driver: driver, Error: code + ": boom", ErrorCode: code}
}

var (
	createSlot = ir.Slot(ir.TypeCreate, "")
	topicSlot  = ir.Slot(ir.TypeTopic, "")
)

func TestEvaluateExpectations_Pass(t *testing.T) {
	state := stateres.StateMap{createSlot: "$create"}
	result := &Result{Outcomes: []Outcome{
		okOutcome(DriverIterative, state),
		okOutcome(DriverAtomic, state.Clone()),
	}}

	errs := EvaluateExpectations(result, Expectation{
		State:  []StateEntry{{Type: ir.TypeCreate, EventID: "$create"}},
		Absent: []ir.StateKey{topicSlot},
	})
	assert.Empty(t, errs)
}

func TestEvaluateExpectations_Disagreement(t *testing.T) {
	result := &Result{Outcomes: []Outcome{
		okOutcome(DriverIterative, stateres.StateMap{createSlot: "$create", topicSlot: "$t1"}),
		okOutcome(DriverAtomic, stateres.StateMap{createSlot: "$create", topicSlot: "$t2"}),
	}}

	errs := EvaluateExpectations(result, Expectation{Absent: []ir.StateKey{ir.Slot(ir.TypeName, "")}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: agreement (atomic)")
	assert.Contains(t, errs[0], "m.room.topic|: $t2 != $t1")
}

func TestEvaluateExpectations_OneDriverFailed(t *testing.T) {
	result := &Result{Outcomes: []Outcome{
		okOutcome(DriverIterative, stateres.StateMap{createSlot: "$create"}),
		failedOutcome(DriverBatched, string(stateres.ErrCodeFetchMissing)),
	}}

	errs := EvaluateExpectations(result, Expectation{State: []StateEntry{{Type: ir.TypeCreate, EventID: "$create"}}})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "same outcome as iterative (1 slots)")
	assert.Contains(t, errs[1], "Expected: resolution to succeed")
}

func TestEvaluateExpectations_ErrorCodes(t *testing.T) {
	code := string(stateres.ErrCodeCycleDetected)

	t.Run("all fail with the code", func(t *testing.T) {
		result := &Result{Outcomes: []Outcome{failedOutcome(DriverBatched, code), failedOutcome(DriverAtomic, code)}}
		assert.Empty(t, EvaluateExpectations(result, Expectation{Error: code}))
	})

	t.Run("different codes", func(t *testing.T) {
		result := &Result{Outcomes: []Outcome{
			failedOutcome(DriverBatched, code),
			failedOutcome(DriverAtomic, string(stateres.ErrCodeFetchMissing)),
		}}
		errs := EvaluateExpectations(result, Expectation{Error: code})
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0], "error CYCLE_DETECTED like batched")
		assert.Contains(t, errs[1], "Actual: error FETCH_MISSING")
	})

	t.Run("unexpected success", func(t *testing.T) {
		result := &Result{Outcomes: []Outcome{okOutcome(DriverAtomic, stateres.StateMap{createSlot: "$create"})}}
		errs := EvaluateExpectations(result, Expectation{Error: code})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "Actual: resolution succeeded")
	})
}

func TestEvaluateExpectations_StateAndAbsent(t *testing.T) {
	result := &Result{Outcomes: []Outcome{
		okOutcome(DriverAtomic, stateres.StateMap{createSlot: "$create", topicSlot: "$t"}),
	}}

	errs := EvaluateExpectations(result, Expectation{
		State: []StateEntry{
			{Type: ir.TypeCreate, EventID: "$other"},
			{Type: ir.TypeName, EventID: "$name"},
		},
		Absent: []ir.StateKey{topicSlot},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Actual: m.room.create| -> $create")
	assert.Contains(t, errs[1], "Actual: slot is empty")
	assert.Contains(t, errs[2], "Expected: m.room.topic| to be empty")
	assert.Contains(t, errs[2], "Resolved state:")
}

func TestDiffStates(t *testing.T) {
	want := stateres.StateMap{createSlot: "$create", topicSlot: "$t1"}
	got := stateres.StateMap{createSlot: "$create", ir.Slot(ir.TypeName, ""): "$n"}

	assert.Equal(t,
		"m.room.name|: unexpected $n; m.room.topic|: missing (want $t1)",
		diffStates(want, got))
}

func TestEntries_Sorted(t *testing.T) {
	entries := Entries(stateres.StateMap{
		topicSlot:  "$t",
		createSlot: "$c",
		ir.Slot(ir.TypeMember, "@b:x"): "$b",
		ir.Slot(ir.TypeMember, "@a:x"): "$a",
	})
	assert.Equal(t, []StateEntry{
		{Type: ir.TypeCreate, EventID: "$c"},
		{Type: ir.TypeMember, StateKey: "@a:x", EventID: "$a"},
		{Type: ir.TypeMember, StateKey: "@b:x", EventID: "$b"},
		{Type: ir.TypeTopic, EventID: "$t"},
	}, entries)
}
