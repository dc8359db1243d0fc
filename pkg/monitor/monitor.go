// Package monitor checks a machine's contract along a solved trajectory and
// reduces each port's pass/fail series to maximal failure ranges.
package monitor

import (
	"fmt"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/dynamics"
	"github.com/ormasoftchile/contractnet/pkg/machine"
	"github.com/ormasoftchile/contractnet/pkg/solver"
)

// Units selects how failure ranges are presented.
type Units string

const (
	Indices Units = "indices"
	Times   Units = "times"
)

// ParseUnits accepts "indices" or "times"; empty means Times.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case "", Times:
		return Times, nil
	case Indices:
		return Indices, nil
	}
	return "", fmt.Errorf("unknown units %q (want indices or times)", s)
}

// IndexRange is a closed run of sample indices [First, Last].
type IndexRange struct {
	First int
	Last  int
}

// Range is a maximal failing run. Indices are 0-based sample positions;
// Start and End are the matching sample times.
type Range struct {
	First int     `json:"first"`
	Last  int     `json:"last"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Format renders the range in the given units.
func (r Range) Format(u Units) string {
	if u == Indices {
		return fmt.Sprintf("[%d, %d]", r.First, r.Last)
	}
	return fmt.Sprintf("[%g, %g]", r.Start, r.End)
}

// FailureIntervals reduces a pass/fail series to its maximal failing runs.
//
// Consecutive pairs are scanned: a pass→fail edge opens a run at i, a
// fail→pass edge closes the open run at i-1. The open run starts at 0, so a
// series that begins failing is recorded from its first sample. A run still
// open at the last sample is closed there, so a single failing sample is
// reported as [0, 0].
func FailureIntervals(pass []bool) []IndexRange {
	var out []IndexRange
	start := 0
	for i := 1; i < len(pass); i++ {
		switch {
		case pass[i-1] && !pass[i]:
			start = i
		case !pass[i-1] && pass[i]:
			out = append(out, IndexRange{First: start, Last: i - 1})
		}
	}
	if n := len(pass); n > 0 && !pass[n-1] {
		out = append(out, IndexRange{First: start, Last: n - 1})
	}
	return out
}

// PortFailures lists the failing ranges of one port. Empty Ranges means the
// port never failed.
type PortFailures struct {
	Name   string  `json:"name"`
	Ranges []Range `json:"ranges"`
}

// BoxFailures holds the per-port failures of one leaf box.
type BoxFailures struct {
	Path    string         `json:"path"`
	Inputs  []PortFailures `json:"inputs"`
	Outputs []PortFailures `json:"outputs"`
}

// Violation is one failing range addressed by box path, direction and port.
type Violation struct {
	Path      string
	Direction contract.Direction
	Port      string
	Range     Range
}

// FailureReport mirrors the flattened verdict directory of a machine, with
// each port's verdict series replaced by its failing ranges.
type FailureReport struct {
	Units   Units         `json:"units"`
	Samples int           `json:"samples"`
	Boxes   []BoxFailures `json:"boxes"`
}

// Lookup returns the failures recorded for a box path.
func (r *FailureReport) Lookup(path string) (*BoxFailures, bool) {
	for i := range r.Boxes {
		if r.Boxes[i].Path == path {
			return &r.Boxes[i], true
		}
	}
	return nil, false
}

// Violations lists every failing range in report order.
func (r *FailureReport) Violations() []Violation {
	var out []Violation
	for _, b := range r.Boxes {
		for _, p := range b.Inputs {
			for _, rg := range p.Ranges {
				out = append(out, Violation{Path: b.Path, Direction: contract.Input, Port: p.Name, Range: rg})
			}
		}
		for _, p := range b.Outputs {
			for _, rg := range p.Ranges {
				out = append(out, Violation{Path: b.Path, Direction: contract.Output, Port: p.Name, Range: rg})
			}
		}
	}
	return out
}

// Count returns the number of failing ranges.
func (r *FailureReport) Count() int { return len(r.Violations()) }

// Violated reports whether any port failed at any sample.
func (r *FailureReport) Violated() bool { return r.Count() > 0 }

// Option configures CheckContract.
type Option func(*options)

type options struct {
	units Units
}

// WithUnits selects index or time presentation of ranges.
func WithUnits(u Units) Option {
	return func(o *options) { o.units = u }
}

// CheckContract evaluates m at every native sample of tr and collects, for
// every leaf box and port, the maximal runs during which the port failed.
// A nil input supplies zeros.
func CheckContract(tr *solver.Trajectory, m *machine.Machine, input solver.Input, p dynamics.Params, opts ...Option) *FailureReport {
	o := options{units: Times}
	for _, opt := range opts {
		opt(&o)
	}
	input = orZero(input, m)
	times := tr.Times()

	report := &FailureReport{Units: o.units, Samples: len(times)}
	if len(times) == 0 {
		return report
	}

	// series[leaf][port] with inputs first, then outputs.
	var leaves []machine.Leaf
	var series [][][]bool
	for i, t := range times {
		flat := machine.Flatten(m.Evaluate(tr.State(i), input(t), p, t))
		if i == 0 {
			leaves = flat
			series = make([][][]bool, len(flat))
			for j, l := range flat {
				series[j] = make([][]bool, len(l.Inputs)+len(l.Outputs))
			}
		}
		for j, l := range flat {
			k := 0
			for _, v := range l.Inputs {
				series[j][k] = append(series[j][k], v)
				k++
			}
			for _, v := range l.Outputs {
				series[j][k] = append(series[j][k], v)
				k++
			}
		}
	}

	toRanges := func(pass []bool) []Range {
		ranges := []Range{}
		for _, ir := range FailureIntervals(pass) {
			ranges = append(ranges, Range{First: ir.First, Last: ir.Last, Start: times[ir.First], End: times[ir.Last]})
		}
		return ranges
	}

	report.Boxes = make([]BoxFailures, len(leaves))
	for j, l := range leaves {
		b := BoxFailures{Path: l.Path}
		for k := range l.Inputs {
			b.Inputs = append(b.Inputs, PortFailures{Name: portName(l.InputNames, k), Ranges: toRanges(series[j][k])})
		}
		for k := range l.Outputs {
			s := series[j][len(l.Inputs)+k]
			b.Outputs = append(b.Outputs, PortFailures{Name: portName(l.OutputNames, k), Ranges: toRanges(s)})
		}
		report.Boxes[j] = b
	}
	return report
}

// Sample evaluates m's verdicts at time t, interpolating the trajectory
// between native samples.
func Sample(m *machine.Machine, tr *solver.Trajectory, t float64, input solver.Input, p dynamics.Params) machine.PortVerdicts {
	input = orZero(input, m)
	return m.Evaluate(tr.At(t), input(t), p, t)
}

func orZero(input solver.Input, m *machine.Machine) solver.Input {
	if input != nil {
		return input
	}
	return solver.Constant(make([]float64, m.Contract().NumInputs())...)
}

func portName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("#%d", i+1)
}
