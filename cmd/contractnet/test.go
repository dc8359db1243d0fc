package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/contractnet/pkg/scenario"
)

var (
	testScenario string
	testJSON     bool
	testFailFast bool
	testTimeout  string
)

var testCmd = &cobra.Command{
	Use:   "test [system.yaml...]",
	Short: "Run scenario tests for system definitions",
	Long: `Discover scenarios for each system, simulate them and compare the outcome
against each scenario's expect block.

Scenarios are discovered by convention at:
  {system-dir}/scenarios/{system-name}/*/scenario.yaml

Scenarios without expectations are reported as skipped.

Exit codes:
  0 — all asserted scenarios passed
  1 — at least one scenario failed or errored
  2 — system validation failed (no scenarios ran)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	timeout := 30 * time.Second
	if testTimeout != "" {
		d, err := time.ParseDuration(testTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", testTimeout, err)
		}
		timeout = d
	}

	runner := &scenario.Runner{Timeout: timeout, FailFast: testFailFast}
	code := runTests(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), runner, args)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runTests runs every system's scenarios and returns the exit code.
func runTests(ctx context.Context, stdout, stderr io.Writer, runner *scenario.Runner, paths []string) int {
	allPassed := true
	hasValidationError := false

	for _, systemPath := range paths {
		var output *scenario.TestOutput
		if testScenario != "" {
			res, err := runner.RunScenario(ctx, systemPath, testScenario)
			if err != nil {
				fmt.Fprintf(stderr, "  ✗ %s: %v\n", systemPath, err)
				hasValidationError = true
				continue
			}
			output = &scenario.TestOutput{System: res.SystemName, Scenarios: []scenario.TestResult{*res}}
			output.Summary.Total = 1
			switch res.Status {
			case scenario.Passed:
				output.Summary.Passed = 1
			case scenario.Failed:
				output.Summary.Failed = 1
			case scenario.Skipped:
				output.Summary.Skipped = 1
			case scenario.Errored:
				output.Summary.Errors = 1
			}
		} else {
			var err error
			output, err = runner.RunAll(ctx, systemPath)
			if err != nil {
				fmt.Fprintf(stderr, "  ✗ %s: %v\n", systemPath, err)
				hasValidationError = true
				continue
			}
		}

		if testJSON {
			writeJSON(stdout, output)
		} else {
			printTestOutput(stdout, output)
		}

		if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
			allPassed = false
		}
		if testFailFast && !allPassed {
			break
		}
	}

	switch {
	case hasValidationError:
		return 2
	case !allPassed:
		return 1
	}
	return 0
}

func printTestOutput(w io.Writer, output *scenario.TestOutput) {
	fmt.Fprintf(w, "\n  %s\n", output.System)
	for _, s := range output.Scenarios {
		switch s.Status {
		case scenario.Passed:
			fmt.Fprintf(w, "    ✓ %-30s %dms\n", s.ScenarioName, s.DurationMs)
		case scenario.Failed:
			fmt.Fprintf(w, "    ✗ %-30s %dms\n", s.ScenarioName, s.DurationMs)
			for _, a := range s.Assertions {
				if !a.Passed {
					fmt.Fprintf(w, "        %s: %s\n", a.Type, a.Message)
				}
			}
			if s.Error != "" {
				fmt.Fprintf(w, "        run error: %s\n", s.Error)
			}
		case scenario.Skipped:
			fmt.Fprintf(w, "    ○ %-30s (no expectations)  %dms\n", s.ScenarioName, s.DurationMs)
		case scenario.Errored:
			fmt.Fprintf(w, "    ✗ %-30s ERROR: %s\n", s.ScenarioName, s.Error)
		}
	}
	fmt.Fprintf(w, "\n  %d scenarios, %d passed, %d failed, %d skipped\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed, output.Summary.Skipped)
	if output.Summary.Errors > 0 {
		fmt.Fprintf(w, "  %d errors\n", output.Summary.Errors)
	}
}

func init() {
	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Run only the named scenario (default: all)")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTimeout, "timeout", "30s", "Per-scenario timeout (e.g. 30s, 1m)")
}
