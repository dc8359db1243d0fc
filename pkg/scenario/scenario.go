// Package scenario implements the contractnet scenario test harness. A
// scenario overrides a system's simulation block and asserts on the
// composition outcome, its warnings and the failure ranges of the run.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/monitor"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/solver"
	"github.com/ormasoftchile/contractnet/pkg/system"
)

// Run statuses.
const (
	StatusComposed = "composed"
	StatusError    = "error"
)

// Error kinds reported for a failed run.
const (
	KindIncompatible = "incompatible"
	KindStructural   = "structural"
	KindDefinition   = "definition"
	KindSimulation   = "simulation"
	KindInvalid      = "invalid"
)

// DefaultTolerance bounds the difference between expected and actual range
// endpoints when Expect.Tolerance is unset.
const DefaultTolerance = 1e-9

// Spec is one scenario.yaml document. All expectations are optional;
// omitted fields produce no assertions.
type Spec struct {
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Simulation  *SimulationOverride `yaml:"simulation,omitempty"  json:"simulation,omitempty"`
	Expect      Expect              `yaml:"expect"                json:"expect"`
	Tags        []string            `yaml:"tags,omitempty"        json:"tags,omitempty"`
}

// SimulationOverride replaces the named fields of a system's simulation
// block. Maps are merged key by key.
type SimulationOverride struct {
	TSpan   *[2]float64        `yaml:"tspan,omitempty"   json:"tspan,omitempty"`
	DT      *float64           `yaml:"dt,omitempty"      json:"dt,omitempty"`
	Method  *string            `yaml:"method,omitempty"  json:"method,omitempty"`
	Initial map[string]float64 `yaml:"initial,omitempty" json:"initial,omitempty"`
	Inputs  []string           `yaml:"inputs,omitempty"  json:"inputs,omitempty"`
	Params  map[string]float64 `yaml:"params,omitempty"  json:"params,omitempty"`
}

// Expect declares what to assert about a run. Status is composed or error;
// Error names the error kind. Violations is keyed by box path.
type Expect struct {
	Status     string                `yaml:"status,omitempty"     json:"status,omitempty"`
	Error      string                `yaml:"error,omitempty"      json:"error,omitempty"`
	Warnings   *int                  `yaml:"warnings,omitempty"   json:"warnings,omitempty"`
	Violations map[string]PortRanges `yaml:"violations,omitempty" json:"violations,omitempty"`
	Clean      []string              `yaml:"clean,omitempty"      json:"clean,omitempty"`
	Tolerance  float64               `yaml:"tolerance,omitempty"  json:"tolerance,omitempty"`
}

// PortRanges maps port names to their expected failing time ranges. An
// empty list asserts the port never failed.
type PortRanges struct {
	Inputs  map[string][][2]float64 `yaml:"inputs,omitempty"  json:"inputs,omitempty"`
	Outputs map[string][][2]float64 `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// IsEmpty reports whether the expectations assert nothing.
func (e Expect) IsEmpty() bool {
	return e.Status == "" && e.Error == "" && e.Warnings == nil && len(e.Violations) == 0 && len(e.Clean) == 0
}

// LoadSpec loads a scenario from a YAML file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec parses scenario YAML, rejecting unknown fields.
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}

// Apply returns a copy of base with the override applied. A nil base starts
// from an empty simulation block.
func (o *SimulationOverride) Apply(base *schema.Simulation) *schema.Simulation {
	var sim schema.Simulation
	if base != nil {
		sim = *base
		sim.Initial = maps.Clone(base.Initial)
		sim.Params = maps.Clone(base.Params)
		sim.Inputs = slices.Clone(base.Inputs)
	}
	if o == nil {
		return &sim
	}
	if o.TSpan != nil {
		sim.TSpan = *o.TSpan
	}
	if o.DT != nil {
		sim.DT = *o.DT
	}
	if o.Method != nil {
		sim.Method = *o.Method
	}
	if o.Inputs != nil {
		sim.Inputs = slices.Clone(o.Inputs)
	}
	if len(o.Initial) > 0 {
		if sim.Initial == nil {
			sim.Initial = map[string]float64{}
		}
		maps.Copy(sim.Initial, o.Initial)
	}
	if len(o.Params) > 0 {
		if sim.Params == nil {
			sim.Params = map[string]float64{}
		}
		maps.Copy(sim.Params, o.Params)
	}
	return &sim
}

// ---------------------------------------------------------------------------
// Run Result (input to assertion evaluation)
// ---------------------------------------------------------------------------

// RunResult captures what a scenario run produced.
type RunResult struct {
	Status    string // composed, error
	ErrorKind string
	Warnings  int
	Report    *monitor.FailureReport // nil when composition failed
	Error     error
}

// ErrorKind classifies a run error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, contract.ErrIncompatibleContract):
		return KindIncompatible
	case errors.Is(err, contract.ErrStructuralMismatch):
		return KindStructural
	case errors.Is(err, contract.ErrContractDefinition):
		return KindDefinition
	case errors.Is(err, solver.ErrInvalidState), errors.Is(err, solver.ErrBadProblem), errors.Is(err, solver.ErrContextCanceled):
		return KindSimulation
	case errors.Is(err, system.ErrInvalidSystem):
		return KindInvalid
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Assertion Evaluation
// ---------------------------------------------------------------------------

// AssertionResult is the result of a single assertion.
type AssertionResult struct {
	Type     string `json:"type"` // status, error, warnings, violations, clean
	Key      string `json:"key,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// Evaluate runs every assertion of e against run.
func Evaluate(e Expect, run *RunResult) []AssertionResult {
	var results []AssertionResult

	if e.Status != "" {
		results = append(results, AssertionResult{
			Type:     "status",
			Expected: e.Status,
			Actual:   run.Status,
			Passed:   run.Status == e.Status,
			Message:  fmt.Sprintf("status: expected %q, got %q", e.Status, run.Status),
		})
	}

	if e.Error != "" {
		results = append(results, AssertionResult{
			Type:     "error",
			Expected: e.Error,
			Actual:   run.ErrorKind,
			Passed:   run.ErrorKind == e.Error,
			Message:  fmt.Sprintf("error: expected %q, got %q", e.Error, run.ErrorKind),
		})
	}

	if e.Warnings != nil {
		results = append(results, AssertionResult{
			Type:     "warnings",
			Expected: fmt.Sprint(*e.Warnings),
			Actual:   fmt.Sprint(run.Warnings),
			Passed:   run.Warnings == *e.Warnings,
			Message:  fmt.Sprintf("warnings: expected %d, got %d", *e.Warnings, run.Warnings),
		})
	}

	tol := e.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	for _, path := range slices.Sorted(maps.Keys(e.Violations)) {
		want := e.Violations[path]
		box, ok := lookup(run.Report, path)
		for _, dir := range []struct {
			d      contract.Direction
			expect map[string][][2]float64
		}{{contract.Input, want.Inputs}, {contract.Output, want.Outputs}} {
			for _, port := range slices.Sorted(maps.Keys(dir.expect)) {
				key := fmt.Sprintf("%s.%s.%s", path, dir.d, port)
				expected := formatRanges(dir.expect[port])
				if !ok {
					results = append(results, AssertionResult{
						Type: "violations", Key: key, Expected: expected, Actual: "missing",
						Message: fmt.Sprintf("violations %s: no box %q in report", key, path),
					})
					continue
				}
				actual, found := actualRanges(box, dir.d, port)
				passed := found && rangesMatch(dir.expect[port], actual, tol)
				got := formatRanges(actual)
				if !found {
					got = "missing"
				}
				results = append(results, AssertionResult{
					Type:     "violations",
					Key:      key,
					Expected: expected,
					Actual:   got,
					Passed:   passed,
					Message:  fmt.Sprintf("violations %s: expected %s, got %s", key, expected, got),
				})
			}
		}
	}

	for _, path := range e.Clean {
		actual := "missing"
		passed := false
		if box, ok := lookup(run.Report, path); ok {
			n := 0
			for _, p := range slices.Concat(box.Inputs, box.Outputs) {
				n += len(p.Ranges)
			}
			actual = fmt.Sprintf("%d violations", n)
			passed = n == 0
		}
		results = append(results, AssertionResult{
			Type:     "clean",
			Key:      path,
			Expected: "0 violations",
			Actual:   actual,
			Passed:   passed,
			Message:  fmt.Sprintf("clean %q: %s", path, actual),
		})
	}

	return results
}

// HasFailures returns true if any assertion failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func lookup(rep *monitor.FailureReport, path string) (*monitor.BoxFailures, bool) {
	if rep == nil {
		return nil, false
	}
	return rep.Lookup(path)
}

func actualRanges(box *monitor.BoxFailures, dir contract.Direction, port string) ([][2]float64, bool) {
	ports := box.Outputs
	if dir == contract.Input {
		ports = box.Inputs
	}
	for _, p := range ports {
		if p.Name != port {
			continue
		}
		out := make([][2]float64, len(p.Ranges))
		for i, r := range p.Ranges {
			out[i] = [2]float64{r.Start, r.End}
		}
		return out, true
	}
	return nil, false
}

func rangesMatch(want, got [][2]float64, tol float64) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if math.Abs(want[i][0]-got[i][0]) > tol || math.Abs(want[i][1]-got[i][1]) > tol {
			return false
		}
	}
	return true
}

func formatRanges(rs [][2]float64) string {
	if len(rs) == 0 {
		return "[]"
	}
	var b bytes.Buffer
	b.WriteString("[")
	for i, r := range rs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%g, %g]", r[0], r[1])
	}
	b.WriteString("]")
	return b.String()
}
