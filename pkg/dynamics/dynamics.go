// Package dynamics provides continuous-time dynamical units and their
// composition over wiring diagrams.
//
// A Unit has an input vector u, a state vector x and an output vector y:
//
//	dx/dt = f(x, u, p, t)
//	y     = r(x, p, t)
//
// Composing units over a diagram concatenates their states in box order and
// feeds each box the sum of the wires terminating at its input ports.
package dynamics

import (
	"errors"
	"fmt"
	"math"

	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

// Domain errors for unit construction and composition.
var (
	// ErrDimensionMismatch indicates mismatched port or state dimensions.
	ErrDimensionMismatch = errors.New("dynamics: dimension mismatch between unit and diagram")

	// ErrNilFunction indicates a unit built without a dynamics or readout function.
	ErrNilFunction = errors.New("dynamics: nil dynamics or readout function")
)

// Params are named parameters passed through to every unit.
type Params map[string]float64

// DynamicsFunc returns dx/dt for state x under input u.
type DynamicsFunc func(x, u []float64, p Params, t float64) []float64

// ReadoutFunc returns the output vector for state x.
type ReadoutFunc func(x []float64, p Params, t float64) []float64

// Unit is a simulatable continuous-time system.
type Unit interface {
	NumInputs() int
	NumStates() int
	NumOutputs() int
	Derivative(x, u []float64, p Params, t float64) []float64
	Readout(x []float64, p Params, t float64) []float64
}

// Continuous is an atomic unit backed by plain functions.
type Continuous struct {
	nIn, nState, nOut int
	dynamics          DynamicsFunc
	readout           ReadoutFunc
}

// NewContinuous builds an atomic unit.
func NewContinuous(nInputs, nStates, nOutputs int, f DynamicsFunc, r ReadoutFunc) (*Continuous, error) {
	if f == nil || r == nil {
		return nil, ErrNilFunction
	}
	if nInputs < 0 || nStates < 0 || nOutputs < 0 {
		return nil, fmt.Errorf("%w: negative dimension (%d, %d, %d)", ErrDimensionMismatch, nInputs, nStates, nOutputs)
	}
	return &Continuous{nIn: nInputs, nState: nStates, nOut: nOutputs, dynamics: f, readout: r}, nil
}

func (c *Continuous) NumInputs() int { return c.nIn }
func (c *Continuous) NumStates() int { return c.nState }
func (c *Continuous) NumOutputs() int { return c.nOut }

func (c *Continuous) Derivative(x, u []float64, p Params, t float64) []float64 {
	return Fit(c.dynamics(x, u, p, t), c.nState)
}

func (c *Continuous) Readout(x []float64, p Params, t float64) []float64 {
	return Fit(c.readout(x, p, t), c.nOut)
}

// Fit returns v resized to n. Missing entries read NaN, which fails every
// contract and stops the solver; extra entries are dropped.
func Fit(v []float64, n int) []float64 {
	if len(v) == n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	for i := len(v); i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}

// Composite is the unit obtained by wiring units together. Its state is the
// concatenation of the member states in box order.
type Composite struct {
	g       wiring.Graph
	units   []Unit
	offsets []int // offsets[i]..offsets[i+1] is box i's state range
}

// Compose wires units (one per box of g, in box order) into one unit.
func Compose(g wiring.Graph, units []Unit) (*Composite, error) {
	boxes := g.Boxes()
	if len(units) != len(boxes) {
		return nil, fmt.Errorf("%w: %d units for %d boxes", ErrDimensionMismatch, len(units), len(boxes))
	}
	for i, b := range boxes {
		u := units[i]
		if u.NumInputs() != len(b.Inputs) || u.NumOutputs() != len(b.Outputs) {
			return nil, fmt.Errorf("%w: box %d (%q) has %d inputs/%d outputs, unit has %d/%d",
				ErrDimensionMismatch, i, b.Name, len(b.Inputs), len(b.Outputs), u.NumInputs(), u.NumOutputs())
		}
	}
	return &Composite{g: g, units: units, offsets: Partition(units)}, nil
}

// Partition returns the state offsets of units laid end to end: unit i owns
// [offsets[i], offsets[i+1]).
func Partition(units []Unit) []int {
	offsets := make([]int, len(units)+1)
	for i, u := range units {
		offsets[i+1] = offsets[i] + u.NumStates()
	}
	return offsets
}

func (c *Composite) NumInputs() int { return len(c.g.Inputs()) }
func (c *Composite) NumStates() int { return c.offsets[len(c.offsets)-1] }
func (c *Composite) NumOutputs() int { return len(c.g.Outputs()) }

// Graph returns the diagram the units are wired over.
func (c *Composite) Graph() wiring.Graph { return c.g }

// Units returns the member units in box order.
func (c *Composite) Units() []Unit { return c.units }

// StateRange returns the half-open range of box i's state.
func (c *Composite) StateRange(i int) (lo, hi int) { return c.offsets[i], c.offsets[i+1] }

// Local returns box i's slice of the composite state x.
func (c *Composite) Local(x []float64, i int) []float64 {
	lo, hi := c.StateRange(i)
	return x[lo:hi:hi]
}

// Readouts evaluates every member's readout on its state slice.
func (c *Composite) Readouts(x []float64, p Params, t float64) [][]float64 {
	out := make([][]float64, len(c.units))
	for i, u := range c.units {
		out[i] = Fit(u.Readout(c.Local(x, i), p, t), u.NumOutputs())
	}
	return out
}

// BoxInputs reconstructs every member's input vector at state x under outer
// input u.
func (c *Composite) BoxInputs(x, u []float64, p Params, t float64) [][]float64 {
	return wiring.GatherInputs(c.g, c.Readouts(x, p, t), u)
}

func (c *Composite) Derivative(x, u []float64, p Params, t float64) []float64 {
	inputs := c.BoxInputs(x, u, p, t)
	dx := make([]float64, 0, c.NumStates())
	for i, unit := range c.units {
		dx = append(dx, Fit(unit.Derivative(c.Local(x, i), inputs[i], p, t), unit.NumStates())...)
	}
	return dx
}

func (c *Composite) Readout(x []float64, p Params, t float64) []float64 {
	return wiring.GatherOutputs(c.g, c.Readouts(x, p, t))
}
