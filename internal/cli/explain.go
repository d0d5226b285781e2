package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/harness"
	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

// ExplainResult is a scenario's resolved state with its decision trace.
type ExplainResult struct {
	Scenario    string               `json:"scenario"`
	RoomVersion string               `json:"room_version"`
	State       []harness.StateEntry `json:"state"`
	Trace       *stateres.Trace      `json:"trace"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <scenario.yaml>",
		Short: "Show how a scenario's state was resolved",
		Long: `Resolve every PDU of a scenario as one set of forks and print the trace:
the conflicted events, the order of both merge passes, the mainline and the
authorizer's verdict on each event.

Examples:
  stateres explain testdata/scenarios/ban_vs_topic.yaml
  stateres explain testdata/scenarios/ban_vs_topic.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, file string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load scenario", err)
	}
	rs, err := scenario.LookupRules()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeNotFound, "unknown room version", err)
	}

	driver := newDriver(opts.logger(cmd.ErrOrStderr()))
	state, trace, err := driver.ExplainAtomic(cmd.Context(), rs, scenario.PDUs())
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeResolution, "resolution failed", err)
	}

	result := ExplainResult{
		Scenario:    scenario.Name,
		RoomVersion: scenario.RoomVersion,
		State:       harness.Entries(state),
		Trace:       trace,
	}
	if opts.Format == "json" {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario %s (room version %s)\n", result.Scenario, result.RoomVersion)
	writeTrace(w, trace)
	fmt.Fprintln(w, "Resolved state:")
	writeState(w, result.State)
	return nil
}

// writeTrace prints a trace section by section.
func writeTrace(w io.Writer, t *stateres.Trace) {
	fmt.Fprintf(w, "Unconflicted slots: %d\n", t.Unconflicted)
	fmt.Fprintf(w, "Conflicted: %s\n", joinIDs(t.Conflicted))
	fmt.Fprintf(w, "Authority order: %s\n", joinIDs(t.AuthorityOrder))
	fmt.Fprintf(w, "Mainline: %s\n", joinIDs(t.Mainline))
	fmt.Fprintf(w, "Ordinary order: %s\n", joinIDs(t.OrdinaryOrder))
	fmt.Fprintln(w, "Decisions:")
	for _, d := range t.Decisions {
		line := fmt.Sprintf("  [%s] %s %s %s", d.Pass, d.Verdict, d.EventID, d.Slot)
		if d.Reason != "" {
			line += ": " + d.Reason
		}
		fmt.Fprintln(w, line)
	}
}

func joinIDs(ids []ir.EventID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
