package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stateres/internal/harness"
)

// DefaultScenarioPattern is where the test command looks without arguments.
const DefaultScenarioPattern = "testdata/scenarios/**/*.yaml"

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	GoldenDir string // overrides <scenario dir>/../golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [pattern]",
		Short: "Run resolution scenarios",
		Long: `Run YAML resolution scenarios through every timeline driver.

Each scenario is checked against its expectations, the drivers must agree
with one another, and when a golden file exists the canonical snapshot of
the result must match it byte for byte. Golden files live in a golden/
directory next to the scenarios directory, named <scenario>.golden.

The pattern is a doublestar glob and defaults to ` + DefaultScenarioPattern + `.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad pattern, etc.)

Examples:
  stateres test
  stateres test 'scenarios/**/ban_*.yaml'
  stateres test --update
  stateres test --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := DefaultScenarioPattern
			if len(args) == 1 {
				pattern = args[0]
			}
			return runTests(opts, pattern, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden files")

	return cmd
}

func runTests(opts *TestOptions, pattern string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	files, err := harness.Discover(pattern)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return out.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := runScenario(opts, file, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(out, result)
	}
	return outputTestText(cmd, result)
}

// runScenario loads, runs and golden-checks one scenario file.
func runScenario(opts *TestOptions, file string, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	fail := func(name string, errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, File: file, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("load error: %v", err))
	}

	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution error: %v", err))
	}

	golden, err := checkGolden(opts, file, scenario, result)
	if err != nil {
		return fail(scenario.Name, err.Error())
	}

	if !result.Pass {
		return fail(scenario.Name, result.Errors...)
	}

	if text {
		switch golden {
		case "updated":
			fmt.Fprintf(w, "✓ %s (golden updated)\n", scenario.Name)
		default:
			fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		}
	}
	return ScenarioResult{Name: scenario.Name, File: file, Pass: true, Golden: golden}
}

var errGoldenMismatch = errors.New("golden file mismatch (run with --update to regenerate)")

// checkGolden compares or rewrites the scenario's golden file.
func checkGolden(opts *TestOptions, file string, scenario *harness.Scenario, result *harness.Result) (string, error) {
	data, err := harness.GoldenJSON(scenario, result)
	if err != nil {
		return "", fmt.Errorf("golden snapshot: %w", err)
	}

	path := goldenFilePath(opts.GoldenDir, file, scenario.Name)

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimRight(want, "\n"), data) {
		return "", errGoldenMismatch
	}
	return "match", nil
}

// goldenFilePath places golden files in a golden/ directory beside the
// scenario file's directory, or in dir when set.
func goldenFilePath(dir, scenarioFile, name string) string {
	if dir == "" {
		dir = filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden")
	}
	return filepath.Join(dir, name+".golden")
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(out *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return out.Success(result)
	}
	message := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	_ = out.Error(ErrCodeScenarioFailed, message, result)
	return NewExitError(ExitFailure, message)
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
