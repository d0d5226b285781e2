package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
	"github.com/roach88/stateres/internal/testutil"
	"github.com/roach88/stateres/internal/timeline"
)

// Scenario defines a resolution test.
// The PDUs of every batch are resolved by each driver and the outcome
// checked against Expect.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RoomVersion selects the rule set.
	RoomVersion string `yaml:"room_version"`

	// Rules is an optional CUE file of extra room versions, relative to
	// the scenario file.
	Rules string `yaml:"rules,omitempty"`

	// RoomID is filled into PDUs that omit room_id.
	// Defaults to "!<name>:localhost".
	RoomID string `yaml:"room_id,omitempty"`

	// Drivers restricts which drivers run. Empty means all of them.
	Drivers []string `yaml:"drivers,omitempty"`

	// Batches are the PDUs in arrival order. The batched driver resolves
	// each batch against the previous result; the other drivers see the
	// concatenation.
	Batches [][]*ir.PDU `yaml:"batches"`

	// Expect holds the checks applied to every driver's outcome.
	Expect Expectation `yaml:"expect"`
}

// Expectation describes the outcome a scenario requires.
type Expectation struct {
	// State lists slots that must hold the given event (subset match).
	State []StateEntry `yaml:"state,omitempty"`

	// Absent lists slots that must be empty.
	Absent []ir.StateKey `yaml:"absent,omitempty"`

	// Error is the error code every driver must fail with.
	Error string `yaml:"error,omitempty"`
}

// StateEntry is one slot of resolved state.
type StateEntry struct {
	Type     string     `yaml:"type" json:"type"`
	StateKey string     `yaml:"state_key" json:"state_key"`
	EventID  ir.EventID `yaml:"event_id" json:"event_id"`
}

// Slot returns the entry's slot.
func (e StateEntry) Slot() ir.StateKey {
	return ir.Slot(e.Type, e.StateKey)
}

// Driver names.
const (
	DriverIterative = "iterative"
	DriverBatched   = "batched"
	DriverAtomic    = "atomic"
)

// AllDrivers lists every driver in the order they run.
var AllDrivers = []string{DriverIterative, DriverBatched, DriverAtomic}

// Error codes a scenario may expect beyond the resolver's own.
const (
	ErrCodeNoRoot        = "NO_ROOT"
	ErrCodeDanglingPrevs = "DANGLING_PREV_EVENTS"
)

var knownErrorCodes = []string{
	string(stateres.ErrCodeArityMismatch),
	string(stateres.ErrCodeNotAStateEvent),
	string(stateres.ErrCodeFetchMissing),
	string(stateres.ErrCodeCycleDetected),
	ErrCodeNoRoot,
	ErrCodeDanglingPrevs,
}

// PDUs returns every PDU of every batch in order.
func (s *Scenario) PDUs() []*ir.PDU {
	var out []*ir.PDU
	for _, batch := range s.Batches {
		out = append(out, batch...)
	}
	return out
}

// drivers returns the drivers to run.
func (s *Scenario) drivers() []string {
	if len(s.Drivers) == 0 {
		return AllDrivers
	}
	return s.Drivers
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// PDUs without room_id get the scenario's room; PDUs without event_id get
// their reference hash.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := prepareScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Discover returns the scenario files matching a doublestar pattern such as
// "testdata/scenarios/**/*.yaml", sorted.
func Discover(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("discover scenarios %q: %w", pattern, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// prepareScenario fills defaults and validates.
func prepareScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RoomID == "" {
		s.RoomID = "!" + s.Name + ":localhost"
	}

	// Fixtures may omit timestamps; arrival order then decides them.
	clock := testutil.NewDeterministicClock()
	for _, batch := range s.Batches {
		for _, p := range batch {
			if p == nil {
				continue
			}
			if p.Room == "" {
				p.Room = s.RoomID
			}
			if p.Timestamp == 0 {
				p.Timestamp = clock.Next()
			}
			if p.ID == "" {
				id, err := ir.ReferenceHash(p)
				if err != nil {
					return err
				}
				p.ID = id
			}
		}
	}

	return validateScenario(s)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.RoomVersion == "" {
		return fmt.Errorf("room_version is required")
	}

	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for _, d := range s.Drivers {
		if !slices.Contains(AllDrivers, d) {
			return fmt.Errorf("unknown driver %q", d)
		}
	}

	seen := make(map[ir.EventID]bool)
	for i, batch := range s.Batches {
		if len(batch) == 0 {
			return fmt.Errorf("batches[%d]: must be non-empty", i)
		}
		for j, p := range batch {
			if p == nil {
				return fmt.Errorf("batches[%d][%d]: empty event", i, j)
			}
			if p.Kind == "" {
				return fmt.Errorf("batches[%d][%d]: type is required", i, j)
			}
			if p.SenderID == "" {
				return fmt.Errorf("batches[%d][%d]: sender is required", i, j)
			}
			if seen[p.ID] {
				return fmt.Errorf("batches[%d][%d]: duplicate event_id %s", i, j, p.ID)
			}
			seen[p.ID] = true
		}
	}

	e := s.Expect
	if len(e.State) == 0 && len(e.Absent) == 0 && e.Error == "" {
		return fmt.Errorf("expect requires at least one of state, absent, error")
	}
	if e.Error != "" && (len(e.State) > 0 || len(e.Absent) > 0) {
		return fmt.Errorf("expect.error cannot be combined with state or absent")
	}
	if e.Error != "" && !slices.Contains(knownErrorCodes, e.Error) {
		return fmt.Errorf("expect.error: unknown error code %q", e.Error)
	}
	for i, entry := range e.State {
		if entry.Type == "" {
			return fmt.Errorf("expect.state[%d]: type is required", i)
		}
		if entry.EventID == "" {
			return fmt.Errorf("expect.state[%d]: event_id is required", i)
		}
	}
	for i, slot := range e.Absent {
		if slot.Type == "" {
			return fmt.Errorf("expect.absent[%d]: type is required", i)
		}
	}

	return nil
}

// errorCode maps a driver error to the code a scenario names.
func errorCode(err error) string {
	var resErr *stateres.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &resErr):
		return string(resErr.Code)
	case errors.Is(err, timeline.ErrNoRoot):
		return ErrCodeNoRoot
	case errors.Is(err, timeline.ErrDanglingPrevEvents):
		return ErrCodeDanglingPrevs
	default:
		return "UNKNOWN"
	}
}
