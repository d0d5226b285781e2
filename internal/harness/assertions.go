package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

// Assertion types reported in AssertionError.
const (
	AssertAgreement = "agreement"
	AssertState     = "state"
	AssertAbsent    = "absent"
	AssertError     = "error"
)

// AssertionError is returned when an expectation fails.
// It includes the driver's state to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Driver   string       // Driver whose outcome failed the check
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	State    []StateEntry // Driver's resolved state for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Driver != "" {
		fmt.Fprintf(&buf, " (%s)", e.Driver)
	}
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.State) > 0 {
		fmt.Fprintf(&buf, "\nResolved state:\n")
		for _, entry := range e.State {
			fmt.Fprintf(&buf, "  %s -> %s\n", entry.Slot(), entry.EventID)
		}
	}

	return buf.String()
}

// EvaluateExpectations checks every driver's outcome and returns failure
// messages. Drivers are first checked against each other, then each against
// the expectation.
func EvaluateExpectations(result *Result, expect Expectation) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	add(assertAgreement(result.Outcomes))

	for _, o := range result.Outcomes {
		if expect.Error != "" {
			add(assertError(o, expect.Error))
			continue
		}
		if o.Failed() {
			add(&AssertionError{
				Type:     AssertError,
				Driver:   o.Driver,
				Expected: "resolution to succeed",
				Actual:   o.Error,
			})
			continue
		}
		for _, entry := range expect.State {
			add(assertState(o, entry))
		}
		for _, slot := range expect.Absent {
			add(assertAbsent(o, slot))
		}
	}
	return errs
}

// assertAgreement checks that every driver produced the same state, or
// that all of them failed with the same code.
func assertAgreement(outcomes []Outcome) error {
	if len(outcomes) < 2 {
		return nil
	}
	first := outcomes[0]
	for _, o := range outcomes[1:] {
		switch {
		case first.Failed() != o.Failed():
			return &AssertionError{
				Type:     AssertAgreement,
				Driver:   o.Driver,
				Expected: fmt.Sprintf("same outcome as %s (%s)", first.Driver, describe(first)),
				Actual:   describe(o),
			}
		case first.Failed():
			if first.ErrorCode != o.ErrorCode {
				return &AssertionError{
					Type:     AssertAgreement,
					Driver:   o.Driver,
					Expected: fmt.Sprintf("error %s like %s", first.ErrorCode, first.Driver),
					Actual:   fmt.Sprintf("error %s", o.ErrorCode),
				}
			}
		case !first.state.Equal(o.state):
			return &AssertionError{
				Type:     AssertAgreement,
				Driver:   o.Driver,
				Expected: fmt.Sprintf("same state as %s", first.Driver),
				Actual:   diffStates(first.state, o.state),
				State:    o.State,
			}
		}
	}
	return nil
}

func assertState(o Outcome, entry StateEntry) error {
	got, ok := o.state.Get(entry.Type, entry.StateKey)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Driver:   o.Driver,
			Expected: fmt.Sprintf("%s -> %s", entry.Slot(), entry.EventID),
			Actual:   "slot is empty",
			State:    o.State,
		}
	}
	if got != entry.EventID {
		return &AssertionError{
			Type:     AssertState,
			Driver:   o.Driver,
			Expected: fmt.Sprintf("%s -> %s", entry.Slot(), entry.EventID),
			Actual:   fmt.Sprintf("%s -> %s", entry.Slot(), got),
			State:    o.State,
		}
	}
	return nil
}

func assertAbsent(o Outcome, slot ir.StateKey) error {
	if got, ok := o.state.Get(slot.Type, slot.StateKey); ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Driver:   o.Driver,
			Expected: fmt.Sprintf("%s to be empty", slot),
			Actual:   fmt.Sprintf("%s -> %s", slot, got),
			State:    o.State,
		}
	}
	return nil
}

func assertError(o Outcome, code string) error {
	if !o.Failed() {
		return &AssertionError{
			Type:     AssertError,
			Driver:   o.Driver,
			Expected: fmt.Sprintf("error %s", code),
			Actual:   "resolution succeeded",
			State:    o.State,
		}
	}
	if o.ErrorCode != code {
		return &AssertionError{
			Type:     AssertError,
			Driver:   o.Driver,
			Expected: fmt.Sprintf("error %s", code),
			Actual:   fmt.Sprintf("error %s: %s", o.ErrorCode, o.Error),
		}
	}
	return nil
}

func describe(o Outcome) string {
	if o.Failed() {
		return "error " + o.ErrorCode
	}
	return fmt.Sprintf("%d slots", len(o.State))
}

// diffStates lists slots whose winners differ, in slot order.
func diffStates(want, got stateres.StateMap) string {
	union := want.Clone()
	for k, v := range got {
		union[k] = v
	}

	var parts []string
	for _, k := range union.SortedKeys() {
		w, wok := want[k]
		g, gok := got[k]
		switch {
		case wok && !gok:
			parts = append(parts, fmt.Sprintf("%s: missing (want %s)", k, w))
		case !wok && gok:
			parts = append(parts, fmt.Sprintf("%s: unexpected %s", k, g))
		case w != g:
			parts = append(parts, fmt.Sprintf("%s: %s != %s", k, g, w))
		}
	}
	return strings.Join(parts, "; ")
}
