// Package system turns contractnet/v0 documents into composed contract
// machines and runs them: simulation, trajectory monitoring and trace
// emission.
package system

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/dynamics"
	"github.com/ormasoftchile/contractnet/pkg/interval"
	"github.com/ormasoftchile/contractnet/pkg/machine"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

// ErrInvalidSystem indicates a document that cannot be turned into a
// machine. Contract errors from composition are wrapped as they are.
var ErrInvalidSystem = errors.New("system: invalid definition")

// Warning is an undefined-behaviour warning raised while composing the
// network at Path ("" for the top level).
type Warning struct {
	Path string
	contract.UndefinedWarning
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.UndefinedWarning.String()
	}
	return w.Path + ": " + w.UndefinedWarning.String()
}

// Built is a composed system ready to simulate.
type Built struct {
	Name     string
	Machine  *machine.Machine
	Diagrams map[string]*wiring.Diagram // by network path, "" is the top level
	States   []string                   // qualified state name per state index
	Params   []string
	Warnings []Warning
}

// StateIndex returns the position of a qualified state name such as
// "plant.T".
func (b *Built) StateIndex(name string) (int, bool) {
	i := slices.Index(b.States, name)
	return i, i >= 0
}

// Build composes sys bottom-up. Subsystem references are expanded
// recursively; every network is composed with machine.Compose.
func Build(sys *schema.System, c *Compiler) (*Built, error) {
	var params []string
	if sys.Simulation != nil {
		params = slices.Sorted(maps.Keys(sys.Simulation.Params))
	}
	b := &builder{sys: sys, c: c, params: params, diagrams: map[string]*wiring.Diagram{}}
	m, states, err := b.network(sys.Network, "")
	if err != nil {
		return nil, err
	}
	return &Built{
		Name:     sys.Meta.Name,
		Machine:  m,
		Diagrams: b.diagrams,
		States:   states,
		Params:   params,
		Warnings: b.warnings,
	}, nil
}

type builder struct {
	sys      *schema.System
	c        *Compiler
	params   []string
	diagrams map[string]*wiring.Diagram
	warnings []Warning
	stack    []string
}

func (b *builder) network(net schema.Network, path string) (*machine.Machine, []string, error) {
	d := wiring.New(terminalNames(net.Inputs), terminalNames(net.Outputs))
	members := make([]*machine.Machine, 0, len(net.Boxes))
	var states []string
	for _, box := range net.Boxes {
		var (
			m   *machine.Machine
			sub []string
			err error
		)
		if box.IsReference() {
			m, sub, err = b.reference(box, join(path, box.Name))
		} else {
			m, err = b.atomic(box, join(path, box.Name))
			for _, s := range box.States {
				sub = append(sub, join(join(path, box.Name), s))
			}
		}
		if err != nil {
			return nil, nil, err
		}
		d.AddBox(box.Name, m.InputNames(), m.OutputNames())
		members = append(members, m)
		states = append(states, sub...)
	}
	if err := connect(d, net.Wires, where(path)); err != nil {
		return nil, nil, err
	}
	m, warnings, err := machine.Compose(d, members)
	if err != nil {
		return nil, nil, fmt.Errorf("compose %s: %w", where(path), err)
	}
	for _, w := range warnings {
		b.warnings = append(b.warnings, Warning{Path: path, UndefinedWarning: w})
	}
	b.diagrams[path] = d
	return m, states, nil
}

func (b *builder) reference(box schema.Box, path string) (*machine.Machine, []string, error) {
	if slices.Contains(b.stack, box.System) {
		return nil, nil, fmt.Errorf("%w: %s: subsystem cycle %v → %s", ErrInvalidSystem, path, b.stack, box.System)
	}
	net, ok := b.sys.Systems[box.System]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: unknown subsystem %q", ErrInvalidSystem, path, box.System)
	}
	b.stack = append(b.stack, box.System)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()
	return b.network(net, path)
}

func (b *builder) atomic(box schema.Box, path string) (*machine.Machine, error) {
	inRanges, inNames, err := parsePorts(box.Inputs, path, "input")
	if err != nil {
		return nil, err
	}
	outRanges, outNames, err := parsePorts(box.Outputs, path, "output")
	if err != nil {
		return nil, err
	}
	if len(box.Dynamics) != len(box.States) {
		return nil, fmt.Errorf("%w: %s: %d dynamics expressions for %d states", ErrInvalidSystem, path, len(box.Dynamics), len(box.States))
	}
	if len(box.Readout) != len(box.Outputs) {
		return nil, fmt.Errorf("%w: %s: %d readout expressions for %d outputs", ErrInvalidSystem, path, len(box.Readout), len(box.Outputs))
	}

	dyn, err := b.compileAll(box.Dynamics, DynamicsVars(box, b.params), path+".dynamics")
	if err != nil {
		return nil, err
	}
	rd, err := b.compileAll(box.Readout, ReadoutVars(box, b.params), path+".readout")
	if err != nil {
		return nil, err
	}

	stateNames, params := box.States, b.params
	m, err := machine.New(machine.Spec{
		Inputs:      inRanges,
		Outputs:     outRanges,
		InputNames:  inNames,
		OutputNames: outNames,
		States:      len(box.States),
		Dynamics: func(x, u []float64, p dynamics.Params, t float64) []float64 {
			return evalAll(dyn, bind(params, p, t, stateNames, x, inNames, u))
		},
		Readout: func(x []float64, p dynamics.Params, t float64) []float64 {
			return evalAll(rd, bind(params, p, t, stateNames, x, nil, nil))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (b *builder) compileAll(srcs, vars []string, path string) ([]*Expr, error) {
	out := make([]*Expr, len(srcs))
	for i, src := range srcs {
		e, err := b.c.Compile(src, vars)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidSystem, path, i, err)
		}
		out[i] = e
	}
	return out, nil
}

// DynamicsVars lists the names visible to a box's dynamics expressions.
func DynamicsVars(box schema.Box, params []string) []string {
	vars := append(slices.Clone(params), "t")
	vars = append(vars, box.States...)
	for _, p := range box.Inputs {
		vars = append(vars, p.Name)
	}
	return vars
}

// ReadoutVars lists the names visible to a box's readout expressions.
// Readouts do not see inputs.
func ReadoutVars(box schema.Box, params []string) []string {
	vars := append(slices.Clone(params), "t")
	return append(vars, box.States...)
}

func bind(params []string, p dynamics.Params, t float64, states []string, x []float64, inputs []string, u []float64) map[string]any {
	env := make(map[string]any, len(params)+1+len(states)+len(inputs))
	for _, k := range params {
		env[k] = p[k]
	}
	env["t"] = t
	for i, s := range states {
		env[s] = x[i]
	}
	for i, n := range inputs {
		env[n] = u[i]
	}
	return env
}

// ParseRange parses a port range; empty text is unconstrained.
func ParseRange(s string) (interval.Interval, error) {
	if s == "" {
		return interval.Unbounded(), nil
	}
	return interval.Parse(s)
}

func parsePorts(ports []schema.PortDef, path, dir string) ([]interval.Interval, []string, error) {
	ranges := make([]interval.Interval, len(ports))
	names := make([]string, len(ports))
	for i, p := range ports {
		iv, err := ParseRange(p.Range)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %s %q: %v", ErrInvalidSystem, path, dir, p.Name, err)
		}
		ranges[i], names[i] = iv, p.Name
	}
	return ranges, names, nil
}

func connect(d *wiring.Diagram, wires []schema.Wire, where string) error {
	for i, w := range wires {
		fb, fp := schema.SplitEndpoint(w.From)
		tb, tp := schema.SplitEndpoint(w.To)
		var err error
		switch {
		case fb == "" && tb != "":
			var in, box, port int
			if in, err = outerIndex(d.Inputs(), fp, "input"); err == nil {
				if box, port, err = boxPort(d, tb, tp, false); err == nil {
					err = d.ConnectInput(in, box, port)
				}
			}
		case fb != "" && tb != "":
			var src, sp, tgt, tpi int
			if src, sp, err = boxPort(d, fb, fp, true); err == nil {
				if tgt, tpi, err = boxPort(d, tb, tp, false); err == nil {
					err = d.Connect(src, sp, tgt, tpi)
				}
			}
		case fb != "" && tb == "":
			var box, port, out int
			if box, port, err = boxPort(d, fb, fp, true); err == nil {
				if out, err = outerIndex(d.Outputs(), tp, "output"); err == nil {
					err = d.ConnectOutput(box, port, out)
				}
			}
		default:
			err = errors.New("connects two outer ports")
		}
		if err != nil {
			return fmt.Errorf("%w: %s wires[%d] %s → %s: %v", ErrInvalidSystem, where, i, w.From, w.To, err)
		}
	}
	return nil
}

func outerIndex(names []string, name, dir string) (int, error) {
	if i := slices.Index(names, name); i >= 0 {
		return i, nil
	}
	return 0, fmt.Errorf("no outer %s %q", dir, name)
}

func boxPort(g wiring.Graph, box, port string, output bool) (int, int, error) {
	bi, ok := wiring.BoxIndex(g, box)
	if !ok {
		return 0, 0, fmt.Errorf("unknown box %q", box)
	}
	ports, dir := g.Boxes()[bi].Inputs, "input"
	if output {
		ports, dir = g.Boxes()[bi].Outputs, "output"
	}
	pi := slices.Index(ports, port)
	if pi < 0 {
		return 0, 0, fmt.Errorf("box %q has no %s %q", box, dir, port)
	}
	return bi, pi, nil
}

func terminalNames(ts []schema.Terminal) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + machine.PathSeparator + name
}

func where(path string) string {
	if path == "" {
		return "system"
	}
	return path
}
