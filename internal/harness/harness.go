package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/stateres/internal/authz"
	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/stateres"
	"github.com/roach88/stateres/internal/store"
	"github.com/roach88/stateres/internal/timeline"
)

// Harness is the test execution engine.
// It runs one scenario's drivers against a private store.
type Harness struct {
	store  *store.Store
	driver *timeline.Driver
	rules  *rules.Rules
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Look up the room version's rules
// 3. Store the scenario's PDUs and read them back
// 4. Run each driver and compare their outcomes
// 5. Check expectations and record the agreed state
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	rs, err := scenario.LookupRules()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := stateres.New(
		authz.New(authz.WithLogger(logger)),
		authz.Powers{},
		stateres.WithLogger(logger),
	)

	h := &Harness{
		store:  st,
		driver: timeline.New(resolver, timeline.WithLogger(logger)),
		rules:  rs,
		logger: logger,
	}

	batches, err := h.roundTrip(ctx, scenario.Batches)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, name := range scenario.drivers() {
		outcome := h.runDriver(ctx, name, batches, result)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	if agreed := agreedState(result); agreed != nil {
		if err := h.record(ctx, scenario, batches, agreed, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// LookupRules returns the rule set for the scenario's room version,
// loading the scenario's rules file when it names one.
func (s *Scenario) LookupRules() (*rules.Rules, error) {
	if s.Rules == "" {
		rs, err := rules.Lookup(s.RoomVersion)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		return rs, nil
	}
	reg, err := rules.LoadFile(s.Rules)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	rs, err := reg.Lookup(s.RoomVersion)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return rs, nil
}

// roundTrip writes every PDU to the store and returns the batches as read
// back, so the drivers see exactly what a stored room would give them.
func (h *Harness) roundTrip(ctx context.Context, batches [][]*ir.PDU) ([][]*ir.PDU, error) {
	out := make([][]*ir.PDU, len(batches))
	for i, batch := range batches {
		if _, err := h.store.WriteEvents(ctx, batch); err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		out[i] = make([]*ir.PDU, len(batch))
		for j, p := range batch {
			stored, err := h.store.ReadEvent(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("batch %d: %w", i, err)
			}
			out[i][j] = stored
		}
	}
	return out, nil
}

func (h *Harness) runDriver(ctx context.Context, name string, batches [][]*ir.PDU, result *Result) Outcome {
	var all []*ir.PDU
	for _, batch := range batches {
		all = append(all, batch...)
	}

	var state stateres.StateMap
	var err error
	switch name {
	case DriverIterative:
		var walk *timeline.Walk
		walk, err = h.driver.ResolveIteratively(ctx, h.rules, all)
		if err == nil {
			state = walk.State
		}
	case DriverBatched:
		index := timeline.NewIndex()
		for _, batch := range batches {
			state, err = h.driver.ResolveBatch(ctx, h.rules, state, batch, index)
			if err != nil {
				break
			}
		}
	case DriverAtomic:
		var trace *stateres.Trace
		state, trace, err = h.driver.ExplainAtomic(ctx, h.rules, all)
		result.Trace = trace
	}

	outcome := Outcome{Driver: name}
	if err != nil {
		outcome.Error = err.Error()
		outcome.ErrorCode = errorCode(err)
		h.logger.Info("driver failed", "driver", name, "error", err)
		return outcome
	}
	outcome.state = state
	outcome.State = Entries(state)
	h.logger.Info("driver completed", "driver", name, "slots", len(state))
	return outcome
}

// agreedState returns the common state when every driver succeeded with
// the same result.
func agreedState(result *Result) stateres.StateMap {
	var agreed stateres.StateMap
	for _, o := range result.Outcomes {
		if o.Failed() {
			return nil
		}
		if agreed == nil {
			agreed = o.state
			continue
		}
		if !agreed.Equal(o.state) {
			return nil
		}
	}
	return agreed
}

// record persists the agreed state like a server would after resolving.
func (h *Harness) record(ctx context.Context, scenario *Scenario, batches [][]*ir.PDU, state stateres.StateMap, result *Result) error {
	count := 0
	for _, batch := range batches {
		count += len(batch)
	}
	seq, err := h.store.LastSeq(ctx)
	if err != nil {
		return err
	}
	res, err := h.store.WriteResolution(ctx, scenario.RoomID, scenario.RoomVersion, count, seq, state)
	if err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	result.State = Entries(state)
	result.StateHash = res.StateHash
	result.ResolutionID = res.ID
	return nil
}
