package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/contractnet/pkg/report"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/system"
	"github.com/ormasoftchile/contractnet/pkg/validate"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Environment variables that supply flag defaults.
const (
	envUnits  = "CONTRACTNET_UNITS"
	envFormat = "CONTRACTNET_FORMAT"
	envTrace  = "CONTRACTNET_TRACE"
	envKeyID  = "CONTRACTNET_TRACE_KEY_ID"
)

func main() {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "contractnet",
	Short:        "Interval contracts for networks of dynamical systems",
	Long:         "contractnet — compose interval contracts over wiring diagrams, simulate the network and report where each port leaves its contract.",
	SilenceUsage: true,
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [system.yaml]",
	Short: "Validate a system definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	c, err := system.NewCompiler(0)
	if err != nil {
		return err
	}
	sys, errs := validate.ValidateFile(args[0], c)
	if err := printValidation(cmd.ErrOrStderr(), errs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d boxes, %d subsystems)\n", sys.Meta.Name, len(sys.Boxes), len(sys.Systems))
	return nil
}

// printValidation writes warnings, then numbered errors. It returns an
// error when any entry has error severity.
func printValidation(w io.Writer, all []*validate.ValidationError) error {
	errs, warnings := validate.Split(all)
	for _, v := range warnings {
		fmt.Fprintf(w, "  ⚠ [%s] %s\n", v.Phase, v.Message)
		if v.Path != "" {
			fmt.Fprintf(w, "    at: %s\n", v.Path)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	fmt.Fprintf(w, "Validation failed: %d error(s)\n\n", len(errs))
	for i, e := range errs {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(w, "     at: %s\n", e.Path)
		}
	}
	return fmt.Errorf("validation failed with %d error(s)", len(errs))
}

// loadValid loads and validates a system file, printing findings.
func loadValid(cmd *cobra.Command, path string) (*schema.System, *system.Compiler, error) {
	c, err := system.NewCompiler(0)
	if err != nil {
		return nil, nil, err
	}
	sys, errs := validate.ValidateFile(path, c)
	if err := printValidation(cmd.ErrOrStderr(), errs); err != nil {
		return nil, nil, err
	}
	return sys, c, nil
}

// --- compose ---

var composeFormat string

var composeCmd = &cobra.Command{
	Use:   "compose [system.yaml]",
	Short: "Compose the contracts of a system and print the composite contract",
	Long: `Build every network of the system bottom-up and compose the box contracts
along the wires.

Wires whose source range is not contained in the target range are reported
as undefined-behaviour warnings. Disjoint ranges are a composition error.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompose,
}

func runCompose(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(envDefault(cmd, "format", composeFormat, envFormat))
	if err != nil {
		return err
	}
	sys, c, err := loadValid(cmd, args[0])
	if err != nil {
		return err
	}
	built, err := system.Build(sys, c)
	if err != nil {
		return err
	}

	warnings := make([]string, len(built.Warnings))
	for i, w := range built.Warnings {
		warnings[i] = w.String()
	}
	contract := built.Machine.Contract()

	if format == report.JSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"system":   built.Name,
			"inputs":   built.Machine.InputNames(),
			"outputs":  built.Machine.OutputNames(),
			"contract": contract.String(),
			"warnings": warnings,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", built.Name, contract)
	fmt.Fprintf(out, "  inputs:  %s\n", strings.Join(built.Machine.InputNames(), ", "))
	fmt.Fprintf(out, "  outputs: %s\n", strings.Join(built.Machine.OutputNames(), ", "))
	return report.New(report.Options{Format: format}).Warnings(cmd.ErrOrStderr(), warnings)
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the system definition format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contractnet %s (commit %s)\n", version, commit)
	},
}

// envDefault returns the flag value, or the environment variable when the
// flag was not set on the command line and the variable is non-empty.
func envDefault(cmd *cobra.Command, flag, value, env string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return value
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	composeCmd.Flags().StringVar(&composeFormat, "format", "table", "Output format: table or json")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}
