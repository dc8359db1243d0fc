package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ormasoftchile/contractnet/pkg/monitor"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/system"
	"github.com/ormasoftchile/contractnet/pkg/validate"
)

// Scenario statuses.
const (
	Passed  = "passed"
	Failed  = "failed"
	Skipped = "skipped"
	Errored = "error"
)

// ErrInvalidSystem is returned when the system under test fails validation.
var ErrInvalidSystem = errors.New("scenario: system validation failed")

// TestResult is the result of running one scenario.
type TestResult struct {
	SystemName   string            `json:"system_name"`
	ScenarioName string            `json:"scenario_name"`
	Status       string            `json:"status"` // passed, failed, skipped, error
	DurationMs   int64             `json:"duration_ms"`
	Assertions   []AssertionResult `json:"assertions,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// TestSummary aggregates counts across scenarios.
type TestSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// TestOutput is the top-level output of a test run.
type TestOutput struct {
	System    string       `json:"system"`
	Scenarios []TestResult `json:"scenarios"`
	Summary   TestSummary  `json:"summary"`
}

// Runner executes scenarios against a system definition.
type Runner struct {
	Compiler *system.Compiler // created on first use when nil
	Timeout  time.Duration    // per scenario; 0 means none
	FailFast bool
}

// ScenarioInfo describes a discovered scenario directory.
type ScenarioInfo struct {
	Name string
	Dir  string
}

// DiscoverScenarios finds scenario directories for a system file.
// Convention: scenarios live in a sibling `scenarios/<system-base>/`
// directory, each subdirectory containing a `scenario.yaml`.
func DiscoverScenarios(systemPath string) ([]ScenarioInfo, error) {
	scenariosDir := scenariosDir(systemPath)
	entries, err := os.ReadDir(scenariosDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scenarios dir: %w", err)
	}

	var scenarios []ScenarioInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scenarioFile := filepath.Join(scenariosDir, entry.Name(), "scenario.yaml")
		if _, err := os.Stat(scenarioFile); err == nil {
			scenarios = append(scenarios, ScenarioInfo{
				Name: entry.Name(),
				Dir:  filepath.Join(scenariosDir, entry.Name()),
			})
		}
	}
	return scenarios, nil
}

func scenariosDir(systemPath string) string {
	base := strings.TrimSuffix(filepath.Base(systemPath), filepath.Ext(systemPath))
	return filepath.Join(filepath.Dir(systemPath), "scenarios", base)
}

// RunAll discovers and runs all scenarios for a system file.
func (r *Runner) RunAll(ctx context.Context, systemPath string) (*TestOutput, error) {
	scenarios, err := DiscoverScenarios(systemPath)
	if err != nil {
		return nil, err
	}
	sys, err := r.load(systemPath)
	if err != nil {
		return nil, err
	}

	output := &TestOutput{System: sys.Meta.Name, Scenarios: []TestResult{}}
	for _, si := range scenarios {
		result := r.runScenario(ctx, sys, si)
		output.Scenarios = append(output.Scenarios, result)

		switch result.Status {
		case Passed:
			output.Summary.Passed++
		case Failed:
			output.Summary.Failed++
		case Skipped:
			output.Summary.Skipped++
		case Errored:
			output.Summary.Errors++
		}
		output.Summary.Total++

		if r.FailFast && (result.Status == Failed || result.Status == Errored) {
			break
		}
	}
	return output, nil
}

// RunScenario runs a single named scenario.
func (r *Runner) RunScenario(ctx context.Context, systemPath, scenarioName string) (*TestResult, error) {
	sys, err := r.load(systemPath)
	if err != nil {
		return nil, err
	}
	si := ScenarioInfo{Name: scenarioName, Dir: filepath.Join(scenariosDir(systemPath), scenarioName)}
	result := r.runScenario(ctx, sys, si)
	return &result, nil
}

func (r *Runner) load(systemPath string) (*schema.System, error) {
	if r.Compiler == nil {
		c, err := system.NewCompiler(0)
		if err != nil {
			return nil, err
		}
		r.Compiler = c
	}
	sys, errs := validate.ValidateFile(systemPath, r.Compiler)
	if validate.HasErrors(errs) {
		errs, _ = validate.Split(errs)
		return nil, fmt.Errorf("%w: %s", ErrInvalidSystem, errs[0])
	}
	return sys, nil
}

// runScenario simulates the system under one scenario and evaluates its
// expectations.
func (r *Runner) runScenario(ctx context.Context, sys *schema.System, si ScenarioInfo) TestResult {
	start := time.Now()
	result := TestResult{SystemName: sys.Meta.Name, ScenarioName: si.Name}
	done := func(status string) TestResult {
		result.Status = status
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	spec, err := LoadSpec(filepath.Join(si.Dir, "scenario.yaml"))
	if err != nil {
		result.Error = err.Error()
		return done(Errored)
	}
	if spec.Expect.IsEmpty() {
		return done(Skipped)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	run := r.execute(ctx, sys, spec)
	result.Assertions = Evaluate(spec.Expect, run)
	if run.Error != nil && spec.Expect.Status != StatusError {
		result.Error = run.Error.Error()
	}
	if HasFailures(result.Assertions) {
		return done(Failed)
	}
	return done(Passed)
}

func (r *Runner) execute(ctx context.Context, sys *schema.System, spec *Spec) *RunResult {
	s := *sys
	s.Simulation = spec.Simulation.Apply(sys.Simulation)

	run, err := system.Simulate(ctx, &s, r.Compiler, system.RunOptions{Units: monitor.Times})
	res := &RunResult{Status: StatusComposed, Error: err, ErrorKind: ErrorKind(err)}
	if err != nil {
		res.Status = StatusError
	}
	if run != nil {
		res.Warnings = len(run.Built.Warnings)
		res.Report = run.Report
	}
	return res
}
