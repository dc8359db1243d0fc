// Package machine pairs a static contract with a dynamics unit and an
// evaluator that checks, at any instant, whether every port value lies in
// its declared interval. Machines compose over wiring diagrams: contracts
// through the contract composer, dynamics through dynamics.Compose, and
// evaluation by re-deriving each member's inputs from the wiring.
package machine

import (
	"fmt"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/dynamics"
	"github.com/ormasoftchile/contractnet/pkg/interval"
	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

// Evaluator checks a machine's ports at state x under outer input u.
type Evaluator interface {
	Evaluate(x, u []float64, p dynamics.Params, t float64) PortVerdicts
}

// Machine is a contract-checked dynamical component.
type Machine struct {
	contract    contract.StaticContract
	unit        dynamics.Unit
	eval        Evaluator
	inputNames  []string
	outputNames []string
}

// Spec declares an atomic machine.
type Spec struct {
	Inputs      []interval.Interval
	Outputs     []interval.Interval
	InputNames  []string // default u1, u2, ...
	OutputNames []string // default y1, y2, ...
	States      int
	Dynamics    dynamics.DynamicsFunc
	Readout     dynamics.ReadoutFunc
}

// New builds an atomic machine whose evaluator tests each input against its
// input interval and each readout value against its output interval.
func New(s Spec) (*Machine, error) {
	c, err := contract.Make(s.Inputs, s.Outputs)
	if err != nil {
		return nil, err
	}
	unit, err := dynamics.NewContinuous(len(s.Inputs), s.States, len(s.Outputs), s.Dynamics, s.Readout)
	if err != nil {
		return nil, err
	}
	inNames := s.InputNames
	if inNames == nil {
		inNames = defaultNames("u", len(s.Inputs))
	}
	outNames := s.OutputNames
	if outNames == nil {
		outNames = defaultNames("y", len(s.Outputs))
	}
	ev := &atomicEvaluator{contract: c, unit: unit, inputNames: inNames, outputNames: outNames}
	return Assemble(c, unit, ev, inNames, outNames)
}

// Assemble combines parts into a machine without building a default
// evaluator. Port counts of the contract, the unit and the names must agree.
func Assemble(c contract.StaticContract, unit dynamics.Unit, ev Evaluator, inputNames, outputNames []string) (*Machine, error) {
	if unit == nil || ev == nil {
		return nil, fmt.Errorf("machine: nil unit or evaluator")
	}
	if unit.NumInputs() != c.NumInputs() || unit.NumOutputs() != c.NumOutputs() {
		return nil, fmt.Errorf("%w: contract has %d inputs/%d outputs, unit has %d/%d",
			dynamics.ErrDimensionMismatch, c.NumInputs(), c.NumOutputs(), unit.NumInputs(), unit.NumOutputs())
	}
	if len(inputNames) != c.NumInputs() || len(outputNames) != c.NumOutputs() {
		return nil, fmt.Errorf("%w: %d input names/%d output names for %d/%d ports",
			dynamics.ErrDimensionMismatch, len(inputNames), len(outputNames), c.NumInputs(), c.NumOutputs())
	}
	return &Machine{contract: c, unit: unit, eval: ev, inputNames: inputNames, outputNames: outputNames}, nil
}

// Contract returns the machine's static contract.
func (m *Machine) Contract() contract.StaticContract { return m.contract }

// Unit returns the machine's dynamics.
func (m *Machine) Unit() dynamics.Unit { return m.unit }

// InputNames returns the input port names.
func (m *Machine) InputNames() []string { return m.inputNames }

// OutputNames returns the output port names.
func (m *Machine) OutputNames() []string { return m.outputNames }

// Evaluate checks every port at state x under outer input u.
func (m *Machine) Evaluate(x, u []float64, p dynamics.Params, t float64) PortVerdicts {
	return m.eval.Evaluate(x, u, p, t)
}

type atomicEvaluator struct {
	contract    contract.StaticContract
	unit        dynamics.Unit
	inputNames  []string
	outputNames []string
}

func (e *atomicEvaluator) Evaluate(x, u []float64, p dynamics.Params, t float64) PortVerdicts {
	in, out := e.contract.Admits(u, e.unit.Readout(x, p, t))
	return Atomic{InputNames: e.inputNames, OutputNames: e.outputNames, Inputs: in, Outputs: out}
}

// Compose wires machines (one per box of g, in box order) into a composite
// machine. The returned warnings come from the contract composer.
func Compose(g wiring.Graph, members []*Machine) (*Machine, []contract.UndefinedWarning, error) {
	contracts := make([]contract.StaticContract, len(members))
	units := make([]dynamics.Unit, len(members))
	for i, m := range members {
		if m == nil {
			return nil, nil, fmt.Errorf("machine: nil member %d", i)
		}
		contracts[i] = m.contract
		units[i] = m.unit
	}
	c, warnings, err := contract.Compose(g, contracts)
	if err != nil {
		return nil, nil, err
	}
	unit, err := dynamics.Compose(g, units)
	if err != nil {
		return nil, nil, err
	}
	ev := &compositeEvaluator{g: g, unit: unit, members: members}
	m, err := Assemble(c, unit, ev, g.Inputs(), g.Outputs())
	if err != nil {
		return nil, nil, err
	}
	return m, warnings, nil
}

// ComposeNamed is Compose over machines keyed by box name.
func ComposeNamed(g wiring.Graph, named map[string]*Machine) (*Machine, []contract.UndefinedWarning, error) {
	members, err := contract.Ordered(g, named)
	if err != nil {
		return nil, nil, err
	}
	return Compose(g, members)
}

type compositeEvaluator struct {
	g       wiring.Graph
	unit    *dynamics.Composite
	members []*Machine
}

func (e *compositeEvaluator) Evaluate(x, u []float64, p dynamics.Params, t float64) PortVerdicts {
	inputs := e.unit.BoxInputs(x, u, p, t)
	boxes := e.g.Boxes()
	out := Composite{Entries: make([]Entry, len(e.members))}
	for i, m := range e.members {
		v := m.Evaluate(e.unit.Local(x, i), inputs[i], p, t)
		if a, ok := v.(Atomic); ok {
			a.InputNames, a.OutputNames = boxes[i].Inputs, boxes[i].Outputs
			v = a
		}
		out.Entries[i] = Entry{Name: boxes[i].Name, Verdicts: v}
	}
	return out
}

func defaultNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return names
}
