package system

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/monitor"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/solver"
	"github.com/ormasoftchile/contractnet/pkg/trace"
)

const rampChain = `
apiVersion: contractnet/v0
meta: {name: ramp}
outputs: [{name: y}]
boxes:
  - name: src
    outputs: [{name: v, range: "[0, 0.5]"}]
    states: [x]
    dynamics: ["rate"]
    readout: ["x"]
  - name: sink
    inputs: [{name: v, range: "[-1, 0.75]"}]
    outputs: [{name: y}]
    states: [acc]
    dynamics: ["v"]
    readout: ["acc"]
wires:
  - {from: src.v, to: sink.v}
  - {from: sink.y, to: y}
simulation:
  tspan: [0, 1]
  dt: 0.25
  method: euler
  params: {rate: 1}
`

func load(t *testing.T, doc string) *schema.System {
	t.Helper()
	sys, err := schema.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return sys
}

func compiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler(0)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuild_Chain(t *testing.T) {
	b, err := Build(load(t, rampChain), compiler(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := []string{"src.x", "sink.acc"}; !reflect.DeepEqual(b.States, want) {
		t.Errorf("states = %v, want %v", b.States, want)
	}
	if len(b.Warnings) != 0 {
		t.Errorf("warnings = %v", b.Warnings)
	}
	if got := b.Machine.Contract().String(); got != "ℝ" {
		t.Errorf("composite contract = %q", got)
	}
	if _, ok := b.Diagrams[""]; !ok {
		t.Error("top-level diagram missing")
	}
	if i, ok := b.StateIndex("sink.acc"); !ok || i != 1 {
		t.Errorf("StateIndex = %d, %v", i, ok)
	}
}

func TestSimulate_Violations(t *testing.T) {
	var buf bytes.Buffer
	tw := trace.NewWriter(&buf, "run-1")
	run, err := Simulate(context.Background(), load(t, rampChain), compiler(t), RunOptions{Units: monitor.Times, Trace: tw})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	r := run.Report
	if r.Samples != 5 {
		t.Fatalf("samples = %d", r.Samples)
	}
	src, _ := r.Lookup("src")
	if want := []monitor.Range{{First: 3, Last: 4, Start: 0.75, End: 1}}; !reflect.DeepEqual(src.Outputs[0].Ranges, want) {
		t.Errorf("src.v = %+v, want %+v", src.Outputs[0].Ranges, want)
	}
	sink, _ := r.Lookup("sink")
	if want := []monitor.Range{{First: 4, Last: 4, Start: 1, End: 1}}; !reflect.DeepEqual(sink.Inputs[0].Ranges, want) {
		t.Errorf("sink.v = %+v, want %+v", sink.Inputs[0].Ranges, want)
	}

	res, err := trace.Verify(bytes.NewReader(buf.Bytes()), nil)
	if err != nil || !res.Valid {
		t.Fatalf("trace invalid: %+v, %v", res, err)
	}
	// run_start, 2 violations, run_complete
	if res.EventCount != 4 {
		t.Errorf("events = %d, want 4\n%s", res.EventCount, buf.String())
	}
	if !strings.Contains(buf.String(), `"status":"violated"`) {
		t.Error("run_complete should report violated")
	}
}

func TestSimulate_NoSimulation(t *testing.T) {
	sys := load(t, rampChain)
	sys.Simulation = nil
	if _, err := Simulate(context.Background(), sys, compiler(t), RunOptions{}); !errors.Is(err, ErrNoSimulation) {
		t.Errorf("expected ErrNoSimulation, got %v", err)
	}
}

func TestSimulate_Diverges(t *testing.T) {
	sys := load(t, rampChain)
	sys.Boxes[0].Dynamics = []string{"1 / (x - x)"}
	run, err := Simulate(context.Background(), sys, compiler(t), RunOptions{})
	if !errors.Is(err, solver.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if run == nil || run.Report.Samples != 1 {
		t.Errorf("partial run = %+v", run)
	}
}

const nested = `
apiVersion: contractnet/v0
meta: {name: nested}
inputs: [{name: r}]
outputs: [{name: y}]
boxes:
  - name: outer
    system: stage
wires:
  - {from: r, to: outer.r}
  - {from: outer.y, to: y}
systems:
  stage:
    inputs: [{name: r}]
    outputs: [{name: y}]
    boxes:
      - name: inner
        inputs: [{name: u, range: "[0, 1]"}]
        outputs: [{name: y, range: "[0, 0.5]"}]
        states: [x]
        dynamics: ["u"]
        readout: ["x"]
    wires:
      - {from: r, to: inner.u}
      - {from: inner.y, to: y}
simulation:
  tspan: [0, 1]
  dt: 0.5
  method: euler
  inputs: ["2 * t"]
  initial: {outer.inner.x: 0.25}
`

func TestSimulate_Nested(t *testing.T) {
	run, err := Simulate(context.Background(), load(t, nested), compiler(t), RunOptions{Units: monitor.Indices})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if want := []string{"outer.inner.x"}; !reflect.DeepEqual(run.Built.States, want) {
		t.Errorf("states = %v", run.Built.States)
	}
	if got := run.Built.Machine.Contract().String(); got != "[0, 1] × [0, 0.5]" {
		t.Errorf("contract = %q", got)
	}
	if _, ok := run.Built.Diagrams["outer"]; !ok {
		t.Error("subsystem diagram missing")
	}
	// u = 2t: 0, 1, 2; x = 0.25, 0.25, 0.75
	leaf, ok := run.Report.Lookup("outer.inner")
	if !ok {
		t.Fatalf("boxes = %+v", run.Report.Boxes)
	}
	if want := []monitor.Range{{First: 2, Last: 2, Start: 1, End: 1}}; !reflect.DeepEqual(leaf.Inputs[0].Ranges, want) {
		t.Errorf("u failures = %+v", leaf.Inputs[0].Ranges)
	}
	if want := []monitor.Range{{First: 2, Last: 2, Start: 1, End: 1}}; !reflect.DeepEqual(leaf.Outputs[0].Ranges, want) {
		t.Errorf("y failures = %+v", leaf.Outputs[0].Ranges)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*schema.System)
		is     error
	}{
		{"incompatible", func(s *schema.System) { s.Boxes[1].Inputs[0].Range = "[2, 3]" }, contract.ErrIncompatibleContract},
		{"empty range", func(s *schema.System) { s.Boxes[0].Outputs[0].Range = "[1, 0]" }, contract.ErrContractDefinition},
		{"bad range", func(s *schema.System) { s.Boxes[0].Outputs[0].Range = "[0, 1" }, ErrInvalidSystem},
		{"bad expression", func(s *schema.System) { s.Boxes[0].Dynamics[0] = "rate +" }, ErrInvalidSystem},
		{"unknown variable", func(s *schema.System) { s.Boxes[0].Readout[0] = "v" }, ErrInvalidSystem},
		{"dynamics arity", func(s *schema.System) { s.Boxes[0].Dynamics = nil }, ErrInvalidSystem},
		{"unknown box", func(s *schema.System) { s.Wires[0].To = "nope.v" }, ErrInvalidSystem},
		{"unknown port", func(s *schema.System) { s.Wires[0].From = "src.w" }, ErrInvalidSystem},
		{"outer to outer", func(s *schema.System) { s.Wires[1] = schema.Wire{From: "y", To: "y"} }, ErrInvalidSystem},
		{"duplicate names", func(s *schema.System) { s.Boxes[1].Name = "src"; s.Wires = nil }, contract.ErrStructuralMismatch},
		{"unknown subsystem", func(s *schema.System) { s.Boxes[0] = schema.Box{Name: "src", System: "missing"} }, ErrInvalidSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := load(t, rampChain)
			tt.mutate(sys)
			if _, err := Build(sys, compiler(t)); !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestBuild_Warning(t *testing.T) {
	sys := load(t, rampChain)
	sys.Boxes[1].Inputs[0].Range = "[0.25, 2]"
	b, err := Build(sys, compiler(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Warnings) != 1 || b.Warnings[0].Path != "" {
		t.Errorf("warnings = %v", b.Warnings)
	}
}

func TestBuild_Cycle(t *testing.T) {
	doc := `
apiVersion: contractnet/v0
meta: {name: loop}
boxes: [{name: a, system: s}]
systems:
  s:
    boxes: [{name: b, system: s}]
`
	if _, err := Build(load(t, doc), compiler(t)); !errors.Is(err, ErrInvalidSystem) || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestInitialState_Unknown(t *testing.T) {
	b, err := Build(load(t, rampChain), compiler(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := InitialState(b, map[string]float64{"src.nope": 1}); !errors.Is(err, ErrInvalidSystem) {
		t.Errorf("expected ErrInvalidSystem, got %v", err)
	}
}

func TestCompiler(t *testing.T) {
	c := compiler(t)
	tests := []struct {
		src  string
		want float64
	}{
		{"1", 1},
		{"x / 4", 0.25},
		{"sat(5, 2)", 2},
		{"sat(-5, 2)", -2},
		{"clamp(x, 2, 3)", 2},
		{"pow(2, 3)", 8},
		{"sin(0) + cos(0)", 1},
		{"exp(0) + log(1) + sqrt(4)", 3},
		{"tanh(0)", 0},
		{"abs(-x)", 1},
		{"max(x, 2)", 2},
		{"min(x, 2)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := c.Compile(tt.src, []string{"x"})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, err := e.Eval(map[string]any{"x": 1.0})
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestCompiler_Cache(t *testing.T) {
	c := compiler(t)
	a, err := c.Compile("x + y", []string{"y", "x"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compile("x + y", []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if a.prog != b.prog || c.cache.Len() != 1 {
		t.Error("same source and variables should share one program")
	}
	if _, err := c.Compile("x + y", []string{"x"}); err == nil {
		t.Error("y is not declared")
	}
}

func TestEvalAll_NaNOnError(t *testing.T) {
	c := compiler(t)
	e, err := c.Compile("x", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	out := evalAll([]*Expr{e}, map[string]any{})
	if !math.IsNaN(out[0]) {
		t.Errorf("missing variable should yield NaN, got %v", out[0])
	}
}
