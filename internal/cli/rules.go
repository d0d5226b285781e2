package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/rules"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [version]",
		Short: "List room versions and their rule sets",
		Long: `List the room versions known to the resolver, including those declared
in the --rules file, with the feature flags of each rule set.

Examples:
  stateres rules
  stateres rules 11 --format json
  stateres rules --rules custom.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runRules(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var sets []*rules.Rules
	if len(args) == 1 {
		rs, err := opts.lookupRules(out, args[0])
		if err != nil {
			return err
		}
		sets = append(sets, rs)
	} else {
		reg, err := opts.registry()
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rules", err)
		}
		for _, v := range reg.Versions() {
			rs, err := reg.Lookup(v)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to load rules", err)
			}
			sets = append(sets, rs)
		}
	}

	if opts.Format == "json" {
		return out.Success(sets)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDISPOSITION\tKNOCK\tRESTRICTED\tKNOCK_RESTRICTED\tINT_LEVELS\tCREATOR_FROM_SENDER")
	for _, rs := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rs.Version, rs.Disposition,
			yesNo(rs.Knocking), yesNo(rs.RestrictedJoinRule), yesNo(rs.KnockRestrictedJoinRule),
			yesNo(rs.IntegerPowerLevels), yesNo(rs.CreatorFromSender))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
