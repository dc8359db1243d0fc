package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/contractnet/pkg/monitor"
	"github.com/ormasoftchile/contractnet/pkg/report"
	"github.com/ormasoftchile/contractnet/pkg/system"
	"github.com/ormasoftchile/contractnet/pkg/trace"
)

var (
	checkUnits      string
	checkFormat     string
	checkTrace      string
	checkVerdictsAt float64
	checkStrict     bool
	checkRaw        bool
	checkWidth      int
)

var checkCmd = &cobra.Command{
	Use:   "check [system.yaml]",
	Short: "Simulate a system and report where ports leave their contracts",
	Long: `Compose the system, integrate it over its simulation span and evaluate every
box contract at each solver sample.

The report lists, per box and port, the maximal ranges during which the port
was outside its interval. With --verdicts-at the pass/fail verdicts at one
instant are printed instead.

Flag defaults can be set with CONTRACTNET_UNITS, CONTRACTNET_FORMAT and
CONTRACTNET_TRACE. When CONTRACTNET_TRACE_SIGNING_KEY is set the trace is
signed.

Exit codes:
  0 — the run completed (violations are data, not failures)
  1 — invalid system, composition error, simulation error, or a violation
      with --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	units, err := monitor.ParseUnits(envDefault(cmd, "units", checkUnits, envUnits))
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(envDefault(cmd, "format", checkFormat, envFormat))
	if err != nil {
		return err
	}
	tracePath := envDefault(cmd, "trace", checkTrace, envTrace)

	sys, c, err := loadValid(cmd, args[0])
	if err != nil {
		return err
	}
	if sys.Simulation == nil {
		return fmt.Errorf("%s: %w", args[0], system.ErrNoSimulation)
	}

	opts := system.RunOptions{Units: units}
	if tracePath != "" {
		tw, err := trace.NewFileWriter(tracePath, trace.NewRunID())
		if err != nil {
			return err
		}
		defer tw.Close()
		if key := os.Getenv(trace.SigningKeyEnv); key != "" {
			tw.SetSigningKey(os.Getenv(envKeyID), []byte(key))
		}
		opts.Trace = tw
	}

	run, simErr := system.Simulate(cmd.Context(), sys, c, opts)
	if run == nil {
		return simErr
	}

	r := report.New(report.Options{Format: format, Title: sys.Meta.Name, Width: checkWidth, Raw: checkRaw})
	warnings := make([]string, len(run.Built.Warnings))
	for i, w := range run.Built.Warnings {
		warnings[i] = w.String()
	}
	if err := r.Warnings(cmd.ErrOrStderr(), warnings); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cmd.Flags().Changed("verdicts-at") {
		v := monitor.Sample(run.Built.Machine, run.Trajectory, checkVerdictsAt, run.Input, run.Params)
		err = r.Verdicts(out, v, checkVerdictsAt)
	} else {
		err = r.Failures(out, run.Report)
	}
	if err != nil {
		return err
	}

	if simErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ simulation stopped early: %v\n", simErr)
		return simErr
	}
	if checkStrict && run.Report.Violated() {
		return fmt.Errorf("%d contract violation(s)", run.Report.Count())
	}
	return nil
}

func init() {
	checkCmd.Flags().StringVar(&checkUnits, "units", "times", "Failure range units: times or indices")
	checkCmd.Flags().StringVar(&checkFormat, "format", "table", "Output format: table, markdown or json")
	checkCmd.Flags().StringVar(&checkTrace, "trace", "", "Write a JSONL trace of the run to this file")
	checkCmd.Flags().Float64Var(&checkVerdictsAt, "verdicts-at", 0, "Print the verdicts at this time instead of the failure report")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit non-zero when any contract is violated")
	checkCmd.Flags().BoolVar(&checkRaw, "raw", false, "Print markdown source instead of styling it")
	checkCmd.Flags().IntVar(&checkWidth, "width", 100, "Word wrap for styled markdown (0 disables)")
}
