package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/authz"
	"github.com/roach88/stateres/internal/config"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/stateres"
	"github.com/roach88/stateres/internal/timeline"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Database  string
	RulesFile string

	// RoomVersion is used when a room's create event does not name one.
	RoomVersion string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stateres CLI.
// Flag defaults come from STATERES_* environment variables.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stateres",
		Short: "stateres - room state resolution",
		Long: `Resolve the state of rooms in an event-DAG federation protocol.

Events are imported into a SQLite store, resolved with state resolution v2
and checked against YAML scenarios.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", cfg.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", cfg.Database, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.RulesFile, "rules", cfg.RulesFile, "CUE file of extra room versions")
	cmd.PersistentFlags().StringVar(&opts.RoomVersion, "room-version", cfg.RoomVersion, "room version when the create event names none")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to stderr so JSON output stays parseable. Verbose mode
// includes every resolution decision.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// registry returns the built-in rule sets, extended by --rules if set.
func (o *RootOptions) registry() (*rules.Registry, error) {
	if o.RulesFile == "" {
		return rules.Builtin()
	}
	return rules.LoadFile(o.RulesFile)
}

// lookupRules resolves a room version against the registry.
func (o *RootOptions) lookupRules(out *OutputFormatter, version string) (*rules.Rules, error) {
	reg, err := o.registry()
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rules", err)
	}
	rs, err := reg.Lookup(version)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeNotFound, "unknown room version", err)
	}
	return rs, nil
}

// newDriver wires the reference authorizer into a timeline driver.
func newDriver(logger *slog.Logger) *timeline.Driver {
	resolver := stateres.New(
		authz.New(authz.WithLogger(logger)),
		authz.Powers{},
		stateres.WithLogger(logger),
	)
	return timeline.New(resolver, timeline.WithLogger(logger))
}
