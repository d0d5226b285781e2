package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/harness"
	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/store"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Room string
}

// ResolveResult is the recorded outcome of resolving a room.
type ResolveResult struct {
	Room         string               `json:"room_id"`
	RoomVersion  string               `json:"room_version"`
	ResolutionID string               `json:"resolution_id"`
	StateHash    string               `json:"state_hash"`
	Events       int                  `json:"events"`
	Leaves       []ir.EventID         `json:"leaves"`
	State        []harness.StateEntry `json:"state"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the current state of a stored room",
		Long: `Resolve the current state of a room from its stored events.

Walks the room's prev_events from its create event, computing the state at
every event, then resolves the states at the DAG's leaves. The result is
recorded in the database with its state hash.

The room version comes from the create event's content, falling back to
--room-version.

Exit codes:
  0 - Room resolved
  1 - Resolution failed (missing events, cycles, dangling prev_events)
  2 - Command error (database, unknown room or version)

Examples:
  stateres resolve --db rooms.db --room '!abc:example.org'
  stateres resolve --db rooms.db --room '!abc:example.org' --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Room, "room", "", "room ID to resolve (required)")
	_ = cmd.MarkFlagRequired("room")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	// The snapshot holds the only connection; close it before writing.
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to read database", err)
	}
	pdus, err := snap.RoomEvents(ctx, opts.Room)
	if err != nil {
		snap.Close()
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to read room events", err)
	}
	lastSeq, err := snap.LastSeq(ctx)
	snap.Close()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to read database", err)
	}

	if len(pdus) == 0 {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("room not found: %s", opts.Room), nil)
	}

	version := roomVersionOf(pdus, opts.RoomVersion)
	rs, err := opts.lookupRules(out, version)
	if err != nil {
		return err
	}
	out.VerboseLog("resolving %d events in %s (room version %s)", len(pdus), opts.Room, version)

	walk, err := newDriver(logger).ResolveIteratively(ctx, rs, pdus)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeResolution, "resolution failed", err)
	}

	rec, err := st.WriteResolution(ctx, opts.Room, version, len(pdus), lastSeq, walk.State)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to record resolution", err)
	}

	result := ResolveResult{
		Room:         opts.Room,
		RoomVersion:  version,
		ResolutionID: rec.ID,
		StateHash:    rec.StateHash,
		Events:       len(pdus),
		Leaves:       walk.Leaves,
		State:        harness.Entries(walk.State),
	}
	if opts.Format == "json" {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Room %s (version %s): %d events, %d leaves\n", result.Room, result.RoomVersion, result.Events, len(result.Leaves))
	writeState(w, result.State)
	fmt.Fprintf(w, "State hash: %s\n", result.StateHash)
	fmt.Fprintf(w, "Recorded as %s\n", result.ResolutionID)
	return nil
}

// roomVersionOf reads the version from the room's create event.
func roomVersionOf(pdus []*ir.PDU, fallback string) string {
	for _, p := range pdus {
		if p.Kind != ir.TypeCreate || len(p.Prev) > 0 {
			continue
		}
		if c, err := ir.DecodeCreate(p.RawContent); err == nil && c.RoomVersion != "" {
			return c.RoomVersion
		}
	}
	return fallback
}
