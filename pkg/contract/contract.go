// Package contract defines static interval contracts over a component's
// ports and composes them through wiring diagrams.
//
// A StaticContract assigns one interval to every input port and one to every
// output port. Composition checks that the diagram and the contracts agree on
// structure, that every internal wire connects overlapping intervals, and
// derives the composite's contract from the members wired to the boundary.
package contract

import (
	"slices"
	"strings"

	"github.com/ormasoftchile/contractnet/pkg/interval"
)

// StaticContract is an immutable list of input and output intervals aligned
// positionally with a component's ports. Every interval is non-empty.
type StaticContract struct {
	inputs  []interval.Interval
	outputs []interval.Interval
}

// Make builds a contract, failing with a *DefinitionError if any interval is
// empty.
func Make(inputs, outputs []interval.Interval) (StaticContract, error) {
	for i, iv := range inputs {
		if iv.IsEmpty() {
			return StaticContract{}, &DefinitionError{Direction: Input, Index: i, Interval: iv}
		}
	}
	for i, iv := range outputs {
		if iv.IsEmpty() {
			return StaticContract{}, &DefinitionError{Direction: Output, Index: i, Interval: iv}
		}
	}
	return StaticContract{inputs: slices.Clone(inputs), outputs: slices.Clone(outputs)}, nil
}

// MustMake is Make for contracts known to be valid. It panics on error.
func MustMake(inputs, outputs []interval.Interval) StaticContract {
	c, err := Make(inputs, outputs)
	if err != nil {
		panic(err)
	}
	return c
}

// Unconstrained returns the contract assigning ℝ to every port.
func Unconstrained(nInputs, nOutputs int) StaticContract {
	c := StaticContract{
		inputs:  make([]interval.Interval, nInputs),
		outputs: make([]interval.Interval, nOutputs),
	}
	for i := range c.inputs {
		c.inputs[i] = interval.Unbounded()
	}
	for i := range c.outputs {
		c.outputs[i] = interval.Unbounded()
	}
	return c
}

// Inputs returns a copy of the input intervals.
func (c StaticContract) Inputs() []interval.Interval { return slices.Clone(c.inputs) }

// Outputs returns a copy of the output intervals.
func (c StaticContract) Outputs() []interval.Interval { return slices.Clone(c.outputs) }

// NumInputs returns the number of input ports.
func (c StaticContract) NumInputs() int { return len(c.inputs) }

// NumOutputs returns the number of output ports.
func (c StaticContract) NumOutputs() int { return len(c.outputs) }

// Input returns the interval of input port i.
func (c StaticContract) Input(i int) interval.Interval { return c.inputs[i] }

// Output returns the interval of output port i.
func (c StaticContract) Output(i int) interval.Interval { return c.outputs[i] }

// Equal reports whether both contracts have identical intervals.
func (c StaticContract) Equal(o StaticContract) bool {
	return slices.EqualFunc(c.inputs, o.inputs, interval.Interval.Equal) &&
		slices.EqualFunc(c.outputs, o.outputs, interval.Interval.Equal)
}

// String renders the contract as a Cartesian product, inputs then outputs.
func (c StaticContract) String() string {
	parts := make([]string, 0, len(c.inputs)+len(c.outputs))
	for _, iv := range c.inputs {
		parts = append(parts, iv.String())
	}
	for _, iv := range c.outputs {
		parts = append(parts, iv.String())
	}
	if len(parts) == 0 {
		return "∅"
	}
	return strings.Join(parts, " × ")
}

// Admits reports, port by port, whether u and y lie inside the contract.
// Missing trailing values count as violations.
func (c StaticContract) Admits(u, y []float64) (inputs, outputs []bool) {
	inputs = make([]bool, len(c.inputs))
	for i, iv := range c.inputs {
		inputs[i] = i < len(u) && iv.Contains(u[i])
	}
	outputs = make([]bool, len(c.outputs))
	for i, iv := range c.outputs {
		outputs[i] = i < len(y) && iv.Contains(y[i])
	}
	return inputs, outputs
}
