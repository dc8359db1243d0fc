package system

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/ormasoftchile/contractnet/pkg/dynamics"
	"github.com/ormasoftchile/contractnet/pkg/monitor"
	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/solver"
	"github.com/ormasoftchile/contractnet/pkg/trace"
)

// ErrNoSimulation indicates a document without a simulation block.
var ErrNoSimulation = errors.New("system: no simulation block")

// RunOptions configure Simulate.
type RunOptions struct {
	Units monitor.Units
	Trace *trace.Writer // optional
}

// Run is the outcome of simulating and monitoring a system.
type Run struct {
	Built      *Built
	Input      solver.Input
	Params     dynamics.Params
	Trajectory *solver.Trajectory
	Report     *monitor.FailureReport
	Duration   time.Duration
}

// Simulate builds sys, integrates it over its simulation span and checks
// the contract at every solver sample. A solver failure still yields a Run
// whose report covers the samples computed before the failure.
func Simulate(ctx context.Context, sys *schema.System, c *Compiler, opts RunOptions) (*Run, error) {
	sim := sys.Simulation
	if sim == nil {
		return nil, ErrNoSimulation
	}
	start := time.Now()
	tw := opts.Trace
	if tw != nil {
		tw.EmitRunStart(sys.Meta.Name, sim.TSpan, sim.DT, string(sim.Method), sim.Params)
	}
	fail := func(err error) error {
		if tw != nil {
			tw.EmitSimulationError(err)
			tw.EmitRunComplete(trace.StatusError, 0, time.Since(start))
		}
		return err
	}

	built, err := Build(sys, c)
	if err != nil {
		return nil, fail(err)
	}
	if tw != nil {
		for _, w := range built.Warnings {
			tw.EmitCompositionWarning(w.Path, w.UndefinedWarning)
		}
	}
	input, err := Inputs(sim, c, built.Params, built.Machine.Contract().NumInputs())
	if err != nil {
		return nil, fail(err)
	}
	x0, err := InitialState(built, sim.Initial)
	if err != nil {
		return nil, fail(err)
	}

	run := &Run{Built: built, Input: input, Params: dynamics.Params(maps.Clone(sim.Params))}
	tr, solveErr := solver.Solve(ctx, solver.Problem{
		Unit:   built.Machine.Unit(),
		X0:     x0,
		Input:  input,
		Params: run.Params,
		Span:   sim.TSpan,
	}, solver.Options{Method: solver.Method(sim.Method), Step: sim.DT})
	if tr == nil {
		return nil, fail(solveErr)
	}
	run.Trajectory = tr
	run.Report = monitor.CheckContract(tr, built.Machine, input, run.Params, monitor.WithUnits(opts.Units))
	run.Duration = time.Since(start)

	if tw != nil {
		for _, v := range run.Report.Violations() {
			tw.EmitContractViolation(v)
		}
		if solveErr != nil {
			tw.EmitSimulationError(solveErr)
		}
		status := trace.StatusClean
		switch {
		case solveErr != nil:
			status = trace.StatusError
		case run.Report.Violated():
			status = trace.StatusViolated
		}
		tw.EmitRunComplete(status, run.Report.Count(), run.Duration)
	}
	return run, solveErr
}

// Inputs compiles the outer input signals. Each expression sees t and the
// simulation params. With no expressions every input is zero.
func Inputs(sim *schema.Simulation, c *Compiler, params []string, n int) (solver.Input, error) {
	if len(sim.Inputs) == 0 {
		return solver.Constant(make([]float64, n)...), nil
	}
	if len(sim.Inputs) != n {
		return nil, fmt.Errorf("%w: simulation.inputs has %d expressions for %d outer inputs", ErrInvalidSystem, len(sim.Inputs), n)
	}
	vars := append([]string{"t"}, params...)
	exprs := make([]*Expr, n)
	for i, src := range sim.Inputs {
		e, err := c.Compile(src, vars)
		if err != nil {
			return nil, fmt.Errorf("%w: simulation.inputs[%d]: %v", ErrInvalidSystem, i, err)
		}
		exprs[i] = e
	}
	p := dynamics.Params(maps.Clone(sim.Params))
	return func(t float64) []float64 {
		return evalAll(exprs, bind(params, p, t, nil, nil, nil, nil))
	}, nil
}

// InitialState maps qualified state names to the composed state vector.
// Unlisted states start at zero.
func InitialState(b *Built, initial map[string]float64) ([]float64, error) {
	x0 := make([]float64, len(b.States))
	for name, v := range initial {
		i, ok := b.StateIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: simulation.initial: unknown state %q", ErrInvalidSystem, name)
		}
		x0[i] = v
	}
	return x0, nil
}
