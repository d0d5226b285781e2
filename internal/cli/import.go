package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/store"
)

// ImportResult reports how many events were stored.
type ImportResult struct {
	Files    int `json:"files"`
	Events   int `json:"events"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Store PDUs in the event database",
		Long: `Store PDUs read from JSON or YAML files in the event database.

Each file holds a list of PDUs. Events already stored under the same
event_id are skipped, so importing a file twice is harmless. PDUs without
an event_id are assigned their reference hash.

Examples:
  stateres import --db rooms.db events.json
  stateres import --db rooms.db batch1.yaml batch2.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runImport(opts *RootOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	var all []*ir.PDU
	for _, f := range files {
		pdus, err := LoadPDUs(f)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load events", err)
		}
		out.VerboseLog("loaded %d events from %s", len(pdus), f)
		all = append(all, pdus...)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	inserted, err := st.WriteEvents(ctx, all)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to store events", err)
	}

	result := ImportResult{
		Files:    len(files),
		Events:   len(all),
		Inserted: inserted,
		Skipped:  len(all) - inserted,
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d events from %d files (%d new, %d already stored)\n",
		result.Events, result.Files, result.Inserted, result.Skipped)
	return nil
}
