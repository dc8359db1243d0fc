package validate

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/solver"
	"github.com/ormasoftchile/contractnet/pkg/system"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateDomain runs the contractnet/v0 domain rules.
func validateDomain(sys *schema.System, c *system.Compiler) []*ValidationError {
	var errs []*ValidationError

	// D1: apiVersion
	if sys.APIVersion != schema.APIVersion {
		errs = append(errs, errorf("domain", "apiVersion", "expected %q, got %q", schema.APIVersion, sys.APIVersion))
	}

	var params []string
	if sys.Simulation != nil {
		params = slices.Sorted(maps.Keys(sys.Simulation.Params))
	}

	// D2–D6: every network level
	errs = append(errs, validateNetwork(sys, sys.Network, "", params, c)...)
	for _, name := range slices.Sorted(maps.Keys(sys.Systems)) {
		errs = append(errs, validateNetwork(sys, sys.Systems[name], "systems."+name+".", params, c)...)
	}

	// D7: subsystem references are acyclic
	cyclic := false
	if cycle := findCycle(sys); cycle != nil {
		cyclic = true
		errs = append(errs, errorf("domain", "systems", "subsystem reference cycle: %v", cycle))
	}

	// D8: simulation block
	if sys.Simulation != nil && !cyclic {
		errs = append(errs, validateSimulation(sys, params, c)...)
	}
	return errs
}

func validateNetwork(sys *schema.System, net schema.Network, prefix string, params []string, c *system.Compiler) []*ValidationError {
	var errs []*ValidationError

	for _, dir := range []struct {
		key   string
		terms []schema.Terminal
	}{{"inputs", net.Inputs}, {"outputs", net.Outputs}} {
		seen := map[string]bool{}
		for i, t := range dir.terms {
			path := fmt.Sprintf("%s%s[%d].name", prefix, dir.key, i)
			if !identRe.MatchString(t.Name) {
				errs = append(errs, errorf("domain", path, "port name %q must be an identifier", t.Name))
			}
			if seen[t.Name] {
				errs = append(errs, errorf("domain", path, "duplicate outer %s %q", dir.key[:len(dir.key)-1], t.Name))
			}
			seen[t.Name] = true
		}
	}

	// ports per box name, resolved through subsystem references
	type ports struct{ in, out []string }
	boxes := map[string]ports{}
	for i, box := range net.Boxes {
		path := fmt.Sprintf("%sboxes[%d]", prefix, i)
		if _, dup := boxes[box.Name]; dup {
			errs = append(errs, errorf("domain", path+".name", "duplicate box name %q", box.Name))
		}
		if box.IsReference() {
			errs = append(errs, validateReference(sys, box, path)...)
			if sub, ok := sys.Systems[box.System]; ok {
				boxes[box.Name] = ports{names(sub.Inputs), names(sub.Outputs)}
			}
			continue
		}
		errs = append(errs, validateAtomic(box, path, params, c)...)
		boxes[box.Name] = ports{portNames(box.Inputs), portNames(box.Outputs)}
	}

	// wires resolve with the right direction
	outerIn, outerOut := names(net.Inputs), names(net.Outputs)
	driven := map[string]int{}
	for i, w := range net.Wires {
		path := fmt.Sprintf("%swires[%d]", prefix, i)
		fb, fp := schema.SplitEndpoint(w.From)
		tb, tp := schema.SplitEndpoint(w.To)
		if fb == "" {
			if !slices.Contains(outerIn, fp) {
				errs = append(errs, errorf("domain", path+".from", "%q is not an outer input", w.From))
			}
		} else if p, ok := boxes[fb]; !ok {
			errs = append(errs, errorf("domain", path+".from", "unknown box %q", fb))
		} else if !slices.Contains(p.out, fp) {
			errs = append(errs, errorf("domain", path+".from", "box %q has no output %q", fb, fp))
		}
		if tb == "" {
			if !slices.Contains(outerOut, tp) {
				errs = append(errs, errorf("domain", path+".to", "%q is not an outer output", w.To))
			}
			if fb == "" {
				errs = append(errs, errorf("domain", path, "wire connects two outer ports"))
			}
		} else if p, ok := boxes[tb]; !ok {
			errs = append(errs, errorf("domain", path+".to", "unknown box %q", tb))
		} else if !slices.Contains(p.in, tp) {
			errs = append(errs, errorf("domain", path+".to", "box %q has no input %q", tb, tp))
		}
		driven[w.To]++
	}

	// warnings: undriven and multiply-driven inputs, unconnected outer outputs
	for i, box := range net.Boxes {
		for _, in := range boxes[box.Name].in {
			ep := box.Name + "." + in
			switch n := driven[ep]; {
			case n == 0:
				errs = append(errs, warningf("domain", fmt.Sprintf("%sboxes[%d]", prefix, i), "input %q is not connected and reads 0", ep))
			case n > 1:
				errs = append(errs, warningf("domain", fmt.Sprintf("%sboxes[%d]", prefix, i), "input %q is driven by %d wires; values are summed", ep, n))
			}
		}
	}
	for i, out := range outerOut {
		if driven[out] == 0 {
			errs = append(errs, warningf("domain", fmt.Sprintf("%soutputs[%d]", prefix, i), "outer output %q is not connected", out))
		}
	}
	return errs
}

func validateReference(sys *schema.System, box schema.Box, path string) []*ValidationError {
	var errs []*ValidationError
	if len(box.Inputs)+len(box.Outputs)+len(box.States)+len(box.Dynamics)+len(box.Readout) > 0 {
		errs = append(errs, errorf("domain", path, "box %q references subsystem %q and cannot declare ports, states, dynamics or readout", box.Name, box.System))
	}
	if _, ok := sys.Systems[box.System]; !ok {
		errs = append(errs, errorf("domain", path+".system", "unknown subsystem %q", box.System))
	}
	return errs
}

func validateAtomic(box schema.Box, path string, params []string, c *system.Compiler) []*ValidationError {
	var errs []*ValidationError

	// every name an expression can see must be unique
	seen := map[string]string{"t": "time"}
	for _, p := range params {
		seen[p] = "param"
	}
	claim := func(name, kind, at string) {
		if !identRe.MatchString(name) {
			errs = append(errs, errorf("domain", at, "%s name %q must be an identifier", kind, name))
			return
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, errorf("domain", at, "%s name %q clashes with %s %q", kind, name, prev, name))
			return
		}
		seen[name] = kind
	}
	for i, s := range box.States {
		claim(s, "state", fmt.Sprintf("%s.states[%d]", path, i))
	}
	for i, p := range box.Inputs {
		claim(p.Name, "input", fmt.Sprintf("%s.inputs[%d].name", path, i))
	}
	outs := map[string]bool{}
	for i, p := range box.Outputs {
		at := fmt.Sprintf("%s.outputs[%d].name", path, i)
		if outs[p.Name] {
			errs = append(errs, errorf("domain", at, "duplicate output %q", p.Name))
		}
		outs[p.Name] = true
	}

	for _, dir := range []struct {
		key   string
		ports []schema.PortDef
	}{{"inputs", box.Inputs}, {"outputs", box.Outputs}} {
		for i, p := range dir.ports {
			at := fmt.Sprintf("%s.%s[%d].range", path, dir.key, i)
			iv, err := system.ParseRange(p.Range)
			if err != nil {
				errs = append(errs, errorf("domain", at, "%v", err))
			} else if iv.IsEmpty() {
				errs = append(errs, errorf("domain", at, "range %s is empty", p.Range))
			}
		}
	}

	if len(box.Dynamics) != len(box.States) {
		errs = append(errs, errorf("domain", path+".dynamics", "%d expressions for %d states", len(box.Dynamics), len(box.States)))
	}
	if len(box.Readout) != len(box.Outputs) {
		errs = append(errs, errorf("domain", path+".readout", "%d expressions for %d outputs", len(box.Readout), len(box.Outputs)))
	}
	if c != nil {
		errs = append(errs, compileAll(c, box.Dynamics, system.DynamicsVars(box, params), path+".dynamics")...)
		errs = append(errs, compileAll(c, box.Readout, system.ReadoutVars(box, params), path+".readout")...)
	}
	return errs
}

func validateSimulation(sys *schema.System, params []string, c *system.Compiler) []*ValidationError {
	var errs []*ValidationError
	sim := sys.Simulation
	if !(sim.DT > 0) {
		errs = append(errs, errorf("domain", "simulation.dt", "dt must be positive, got %g", sim.DT))
	}
	if !(sim.TSpan[1] > sim.TSpan[0]) {
		errs = append(errs, errorf("domain", "simulation.tspan", "tspan end %g must exceed start %g", sim.TSpan[1], sim.TSpan[0]))
	}
	switch solver.Method(sim.Method) {
	case "", solver.Euler, solver.Midpoint, solver.RK4:
	default:
		errs = append(errs, errorf("domain", "simulation.method", "unknown method %q", sim.Method))
	}
	if n := len(sim.Inputs); n > 0 && n != len(sys.Inputs) {
		errs = append(errs, errorf("domain", "simulation.inputs", "%d expressions for %d outer inputs", n, len(sys.Inputs)))
	}
	if c != nil {
		errs = append(errs, compileAll(c, sim.Inputs, append([]string{"t"}, params...), "simulation.inputs")...)
	}

	states := stateNames(sys, sys.Network, "")
	for _, k := range slices.Sorted(maps.Keys(sim.Initial)) {
		if !slices.Contains(states, k) {
			errs = append(errs, errorf("domain", "simulation.initial."+k, "unknown state %q", k))
		}
	}
	return errs
}

func compileAll(c *system.Compiler, srcs, vars []string, path string) []*ValidationError {
	var errs []*ValidationError
	for i, src := range srcs {
		if _, err := c.Compile(src, vars); err != nil {
			errs = append(errs, errorf("domain", fmt.Sprintf("%s[%d]", path, i), "%v", err))
		}
	}
	return errs
}

// stateNames lists qualified state names. It must only run on acyclic
// documents.
func stateNames(sys *schema.System, net schema.Network, prefix string) []string {
	var out []string
	for _, box := range net.Boxes {
		if box.IsReference() {
			if sub, ok := sys.Systems[box.System]; ok {
				out = append(out, stateNames(sys, sub, prefix+box.Name+".")...)
			}
			continue
		}
		for _, s := range box.States {
			out = append(out, prefix+box.Name+"."+s)
		}
	}
	return out
}

// findCycle returns the first subsystem reference cycle found, or nil.
func findCycle(sys *schema.System) []string {
	const (
		unvisited = iota
		active
		done
	)
	state := map[string]int{}
	var stack []string
	var visit func(name string, net schema.Network) []string
	visit = func(name string, net schema.Network) []string {
		state[name] = active
		stack = append(stack, name)
		for _, box := range net.Boxes {
			if !box.IsReference() {
				continue
			}
			sub, ok := sys.Systems[box.System]
			if !ok {
				continue
			}
			switch state[box.System] {
			case active:
				i := slices.Index(stack, box.System)
				return append(slices.Clone(stack[i:]), box.System)
			case unvisited:
				if c := visit(box.System, sub); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}
	if c := visit("", sys.Network); c != nil {
		return c
	}
	for _, name := range slices.Sorted(maps.Keys(sys.Systems)) {
		if state[name] == unvisited {
			if c := visit(name, sys.Systems[name]); c != nil {
				return c
			}
		}
	}
	return nil
}

func names(ts []schema.Terminal) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func portNames(ps []schema.PortDef) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
