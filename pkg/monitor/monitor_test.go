package monitor

import (
	"context"
	"reflect"
	"testing"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/dynamics"
	"github.com/ormasoftchile/contractnet/pkg/interval"
	"github.com/ormasoftchile/contractnet/pkg/machine"
	"github.com/ormasoftchile/contractnet/pkg/solver"
	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

func TestFailureIntervals(t *testing.T) {
	const T, F = true, false
	tests := []struct {
		name   string
		series []bool
		want   []IndexRange
	}{
		{"empty", nil, nil},
		{"two runs, second closed at end", []bool{T, T, F, F, T, T, T, F}, []IndexRange{{2, 3}, {7, 7}}},
		{"all pass", []bool{T, T, T}, nil},
		{"all fail", []bool{F, F, F, F}, []IndexRange{{0, 3}}},
		{"single fail", []bool{F}, []IndexRange{{0, 0}}},
		{"single pass", []bool{T}, nil},
		{"failing at start", []bool{F, F, T, T}, []IndexRange{{0, 1}}},
		{"first sample only", []bool{F, T}, []IndexRange{{0, 0}}},
		{"alternating", []bool{T, F, T, F, T}, []IndexRange{{1, 1}, {3, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureIntervals(tt.series); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FailureIntervals(%v) = %v, want %v", tt.series, got, tt.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	for in, want := range map[string]Units{"": Times, "times": Times, "indices": Indices} {
		got, err := ParseUnits(in)
		if err != nil || got != want {
			t.Errorf("ParseUnits(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseUnits("seconds"); err == nil {
		t.Error("expected error for unknown units")
	}
}

// ramp is x' = 1 with y = x, so the readout equals t from x0 = 0.
func ramp(t *testing.T, out interval.Interval) *machine.Machine {
	t.Helper()
	m, err := machine.New(machine.Spec{
		Inputs:      []interval.Interval{interval.Unbounded()},
		Outputs:     []interval.Interval{out},
		InputNames:  []string{"u"},
		OutputNames: []string{"y"},
		States:      1,
		Dynamics:    func(x, u []float64, _ dynamics.Params, _ float64) []float64 { return []float64{1} },
		Readout:     func(x []float64, _ dynamics.Params, _ float64) []float64 { return []float64{x[0]} },
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func solve(t *testing.T, m *machine.Machine, x0 ...float64) *solver.Trajectory {
	t.Helper()
	tr, err := solver.Solve(context.Background(), solver.Problem{
		Unit: m.Unit(), X0: x0, Span: [2]float64{0, 1},
	}, solver.Options{Step: 0.25, Method: solver.Euler})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestCheckContract_Atomic(t *testing.T) {
	// samples y = 0, .25, .5, .75, 1; the contract fails above 0.5.
	m := ramp(t, interval.Closed(0, 0.5))
	r := CheckContract(solve(t, m, 0), m, nil, nil)
	if r.Samples != 5 || r.Units != Times {
		t.Fatalf("report header = %+v", r)
	}
	b, ok := r.Lookup("")
	if !ok {
		t.Fatalf("atomic leaf missing: %+v", r.Boxes)
	}
	if len(b.Inputs[0].Ranges) != 0 {
		t.Errorf("unbounded input failed: %v", b.Inputs[0].Ranges)
	}
	want := []Range{{First: 3, Last: 4, Start: 0.75, End: 1}}
	if b.Outputs[0].Name != "y" || !reflect.DeepEqual(b.Outputs[0].Ranges, want) {
		t.Errorf("output failures = %+v, want %+v", b.Outputs[0], want)
	}
	if !r.Violated() || r.Count() != 1 {
		t.Errorf("Violated/Count = %v/%d", r.Violated(), r.Count())
	}
	v := r.Violations()[0]
	if v.Direction != contract.Output || v.Port != "y" {
		t.Errorf("violation = %+v", v)
	}
	if got := v.Range.Format(Indices); got != "[3, 4]" {
		t.Errorf("Format(Indices) = %q", got)
	}
	if got := v.Range.Format(Times); got != "[0.75, 1]" {
		t.Errorf("Format(Times) = %q", got)
	}
}

func TestCheckContract_StrictlyInside(t *testing.T) {
	m := ramp(t, interval.Open(-1, 2))
	r := CheckContract(solve(t, m, 0), m, nil, nil, WithUnits(Indices))
	if r.Violated() {
		t.Errorf("expected no failures, got %+v", r.Violations())
	}
	if r.Units != Indices {
		t.Errorf("units = %q", r.Units)
	}
	for _, b := range r.Boxes {
		for _, p := range b.Outputs {
			if p.Ranges == nil || len(p.Ranges) != 0 {
				t.Errorf("port %s: want empty non-nil ranges, got %#v", p.Name, p.Ranges)
			}
		}
	}
}

func TestCheckContract_Composite(t *testing.T) {
	d := wiring.New([]string{"r"}, []string{"y"})
	a := d.AddBox("a", []string{"u"}, []string{"v"})
	b := d.AddBox("b", []string{"v"}, []string{"y"})
	_ = d.ConnectInput(0, a, 0)
	_ = d.Connect(a, 0, b, 0)
	_ = d.ConnectOutput(b, 0, 0)

	ma := ramp(t, interval.Unbounded())
	mb, err := machine.New(machine.Spec{
		Inputs:   []interval.Interval{interval.Closed(-10, 0.6)},
		Outputs:  []interval.Interval{interval.Unbounded()},
		Dynamics: func(x, u []float64, _ dynamics.Params, _ float64) []float64 { return nil },
		Readout:  func(x []float64, _ dynamics.Params, _ float64) []float64 { return []float64{0} },
	})
	if err != nil {
		t.Fatal(err)
	}
	m, _, err := machine.Compose(d, []*machine.Machine{ma, mb})
	if err != nil {
		t.Fatal(err)
	}
	tr := solve(t, m, 0)
	r := CheckContract(tr, m, solver.Constant(0), nil)

	if len(r.Boxes) != 2 || r.Boxes[0].Path != "a" || r.Boxes[1].Path != "b" {
		t.Fatalf("boxes = %+v", r.Boxes)
	}
	got, _ := r.Lookup("b")
	if got.Inputs[0].Name != "v" {
		t.Errorf("port name = %q", got.Inputs[0].Name)
	}
	if want := []Range{{First: 3, Last: 4, Start: 0.75, End: 1}}; !reflect.DeepEqual(got.Inputs[0].Ranges, want) {
		t.Errorf("b.v failures = %+v, want %+v", got.Inputs[0].Ranges, want)
	}

	again := CheckContract(tr, m, solver.Constant(0), nil)
	if !reflect.DeepEqual(r, again) {
		t.Error("CheckContract is not deterministic")
	}
}

func TestCheckContract_EmptyTrajectory(t *testing.T) {
	m := ramp(t, interval.Unbounded())
	tr, err := solver.NewTrajectory(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := CheckContract(tr, m, nil, nil)
	if r.Samples != 0 || len(r.Boxes) != 0 || r.Violated() {
		t.Errorf("report = %+v", r)
	}
}

func TestSample(t *testing.T) {
	m := ramp(t, interval.Closed(0, 0.5))
	tr := solve(t, m, 0)
	if v := Sample(m, tr, 0.4, nil, nil); !machine.Passed(v) {
		t.Errorf("t=0.4 should pass: %+v", v)
	}
	v, ok := Sample(m, tr, 0.6, nil, nil).(machine.Atomic)
	if !ok || v.Outputs[0] {
		t.Errorf("t=0.6 should fail output: %+v", v)
	}
}
