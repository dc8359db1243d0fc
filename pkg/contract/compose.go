package contract

import (
	"fmt"

	"github.com/ormasoftchile/contractnet/pkg/interval"
	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

// Compose checks contracts (one per box, in box order) against g and derives
// the composite contract.
//
// Checks run in a fixed order and the first failure is returned: contract
// count, box name uniqueness, per-box port arity, port-name agreement on
// every internal wire, then interval overlap on every internal wire. A wire
// whose source interval is not contained in its target interval yields an
// UndefinedWarning instead of an error.
//
// The composite's input i is the interval of the first box input wired to
// outer input i; its output j is the interval of the first box output wired
// to outer output j. Unwired outer ports are unconstrained.
func Compose(g wiring.Graph, contracts []StaticContract) (StaticContract, []UndefinedWarning, error) {
	boxes := g.Boxes()

	// S1: one contract per box
	if len(contracts) != len(boxes) {
		return StaticContract{}, nil, &StructuralError{
			Kind:    MismatchBoxCount,
			Box:     -1,
			Message: fmt.Sprintf("%d contracts supplied for %d boxes", len(contracts), len(boxes)),
		}
	}

	// S2: box names are unique
	if err := checkUniqueNames(boxes); err != nil {
		return StaticContract{}, nil, err
	}

	// S3: port arity agrees with contract arity
	for i, b := range boxes {
		c := contracts[i]
		if len(b.Inputs) != c.NumInputs() || len(b.Outputs) != c.NumOutputs() {
			return StaticContract{}, nil, &StructuralError{
				Kind: MismatchArity,
				Box:  i,
				Name: b.Name,
				Message: fmt.Sprintf("box has %d inputs/%d outputs, contract has %d/%d",
					len(b.Inputs), len(b.Outputs), c.NumInputs(), c.NumOutputs()),
			}
		}
	}

	// S4: wires join ports of the same name
	for _, w := range g.Wires() {
		src, tgt := boxes[w.Source.Box], boxes[w.Target.Box]
		out, in := src.Outputs[w.Source.Port], tgt.Inputs[w.Target.Port]
		if out != in {
			return StaticContract{}, nil, &StructuralError{
				Kind: MismatchPortName,
				Box:  w.Target.Box,
				Name: tgt.Name,
				Message: fmt.Sprintf("wire from %s.%s (box %d) lands on input %q",
					src.Name, out, w.Source.Box, in),
			}
		}
	}

	// C1: wired intervals overlap
	var warnings []UndefinedWarning
	for _, w := range g.Wires() {
		src, tgt := boxes[w.Source.Box], boxes[w.Target.Box]
		ref := WireRef{
			SourceBox:  w.Source.Box,
			SourceName: src.Name,
			TargetBox:  w.Target.Box,
			TargetName: tgt.Name,
			Port:       src.Outputs[w.Source.Port],
		}
		emits := contracts[w.Source.Box].outputs[w.Source.Port]
		accepts := contracts[w.Target.Box].inputs[w.Target.Port]
		overlap := interval.Intersect(emits, accepts)
		if overlap.IsEmpty() {
			return StaticContract{}, nil, &IncompatibilityError{Wire: ref, Source: emits, Target: accepts}
		}
		if !overlap.Equal(emits) {
			warnings = append(warnings, UndefinedWarning{Wire: ref, Source: emits, Target: accepts, Overlap: overlap})
		}
	}

	composite := Unconstrained(len(g.Inputs()), len(g.Outputs()))
	seen := make([]bool, len(g.Inputs()))
	for _, w := range g.InWires() {
		if seen[w.Input] {
			continue
		}
		seen[w.Input] = true
		composite.inputs[w.Input] = contracts[w.Target.Box].inputs[w.Target.Port]
	}
	seen = make([]bool, len(g.Outputs()))
	for _, w := range g.OutWires() {
		if seen[w.Output] {
			continue
		}
		seen[w.Output] = true
		composite.outputs[w.Output] = contracts[w.Source.Box].outputs[w.Source.Port]
	}
	return composite, warnings, nil
}

// ComposeNamed is Compose over a name-keyed set of contracts. Boxes missing
// from named are given an unconstrained contract; named itself is not
// modified.
func ComposeNamed(g wiring.Graph, named map[string]StaticContract) (StaticContract, []UndefinedWarning, error) {
	ordered, err := Ordered(g, WithDefaults(g, named))
	if err != nil {
		return StaticContract{}, nil, err
	}
	return Compose(g, ordered)
}

// WithDefaults returns a copy of named in which every box of g without an
// entry maps to an unconstrained contract sized to its ports.
func WithDefaults(g wiring.Graph, named map[string]StaticContract) map[string]StaticContract {
	out := make(map[string]StaticContract, len(named)+len(g.Boxes()))
	for k, v := range named {
		out[k] = v
	}
	for _, b := range g.Boxes() {
		if _, ok := out[b.Name]; !ok {
			out[b.Name] = Unconstrained(len(b.Inputs), len(b.Outputs))
		}
	}
	return out
}

// Ordered arranges a name-keyed mapping into box order. It fails when the
// mapping and the diagram disagree on the set of names or when box names
// repeat.
func Ordered[T any](g wiring.Graph, named map[string]T) ([]T, error) {
	boxes := g.Boxes()
	// Repeated names collapse in a map, so they are reported before the count.
	if err := checkUniqueNames(boxes); err != nil {
		return nil, err
	}
	if len(named) != len(boxes) {
		return nil, &StructuralError{
			Kind:    MismatchBoxCount,
			Box:     -1,
			Message: fmt.Sprintf("%d entries supplied for %d boxes", len(named), len(boxes)),
		}
	}
	out := make([]T, len(boxes))
	for i, b := range boxes {
		v, ok := named[b.Name]
		if !ok {
			return nil, &StructuralError{
				Kind:    MismatchBoxCount,
				Box:     i,
				Name:    b.Name,
				Message: "no entry supplied for box",
			}
		}
		out[i] = v
	}
	return out, nil
}

func checkUniqueNames(boxes []wiring.Box) error {
	if len(boxes) < 2 {
		return nil
	}
	first := make(map[string]int, len(boxes))
	for i, b := range boxes {
		if j, ok := first[b.Name]; ok {
			return &StructuralError{
				Kind:    MismatchDuplicate,
				Box:     i,
				Name:    b.Name,
				Message: fmt.Sprintf("name already used by box %d", j),
			}
		}
		first[b.Name] = i
	}
	return nil
}
