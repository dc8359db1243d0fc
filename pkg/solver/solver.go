// Package solver integrates dynamics units over a time span with fixed-step
// explicit methods and returns a sampled trajectory.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/ormasoftchile/contractnet/pkg/dynamics"
)

// Domain errors for simulation runs.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("solver: invalid state (NaN or Inf detected)")

	// ErrBadProblem indicates an ill-formed problem or options.
	ErrBadProblem = errors.New("solver: invalid problem definition")

	// ErrContextCanceled indicates the run was interrupted.
	ErrContextCanceled = errors.New("solver: simulation canceled by context")
)

// SimulationError wraps an error with the step at which it occurred.
type SimulationError struct {
	Step    int
	Time    float64
	State   []float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error { return e.Wrapped }

// Method selects the integration scheme.
type Method string

const (
	Euler    Method = "euler"
	Midpoint Method = "midpoint"
	RK4      Method = "rk4"
)

// Input supplies the outer input vector at time t.
type Input func(t float64) []float64

// Constant returns an Input that always yields u.
func Constant(u ...float64) Input {
	return func(float64) []float64 { return u }
}

// Problem is an initial value problem over a unit.
type Problem struct {
	Unit   dynamics.Unit
	X0     []float64
	Input  Input
	Params dynamics.Params
	Span   [2]float64
}

// Options configure the integrator.
type Options struct {
	Method   Method  // default rk4
	Step     float64 // required, > 0
	MaxSteps int     // 0 means 1e7
}

// Solve integrates the problem and records the state after every step,
// including the initial state at Span[0]. The final step is shortened so the
// last sample lands exactly on Span[1].
func Solve(ctx context.Context, prob Problem, opts Options) (*Trajectory, error) {
	if prob.Unit == nil {
		return nil, fmt.Errorf("%w: nil unit", ErrBadProblem)
	}
	if len(prob.X0) != prob.Unit.NumStates() {
		return nil, fmt.Errorf("%w: initial state has %d entries, unit has %d states",
			ErrBadProblem, len(prob.X0), prob.Unit.NumStates())
	}
	t0, t1 := prob.Span[0], prob.Span[1]
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: empty time span [%g, %g]", ErrBadProblem, t0, t1)
	}
	if !(opts.Step > 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %g", ErrBadProblem, opts.Step)
	}
	step, err := stepper(opts.Method)
	if err != nil {
		return nil, err
	}
	input := prob.Input
	if input == nil {
		input = Constant(make([]float64, prob.Unit.NumInputs())...)
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10_000_000
	}
	n := int(math.Ceil((t1-t0)/opts.Step - 1e-9))
	if n > maxSteps {
		return nil, fmt.Errorf("%w: %d steps exceeds limit %d", ErrBadProblem, n, maxSteps)
	}

	f := func(x []float64, t float64) []float64 {
		return prob.Unit.Derivative(x, input(t), prob.Params, t)
	}

	tr := &Trajectory{
		times:  make([]float64, 0, n+1),
		states: make([][]float64, 0, n+1),
	}
	x := slices.Clone(prob.X0)
	t := t0
	tr.append(t, x)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return tr, &SimulationError{Step: i, Time: t, State: x, Wrapped: fmt.Errorf("%w: %w", ErrContextCanceled, err)}
		}
		h := opts.Step
		if i == n {
			h = t1 - t
		}
		x = step(f, x, t, h)
		if i == n {
			t = t1
		} else {
			t = t0 + float64(i)*opts.Step
		}
		if !finite(x) {
			return tr, &SimulationError{Step: i, Time: t, State: x, Wrapped: ErrInvalidState}
		}
		tr.append(t, x)
	}
	return tr, nil
}

type derivative func(x []float64, t float64) []float64

type stepFunc func(f derivative, x []float64, t, h float64) []float64

func stepper(m Method) (stepFunc, error) {
	switch m {
	case Euler:
		return eulerStep, nil
	case Midpoint:
		return midpointStep, nil
	case RK4, "":
		return rk4Step, nil
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrBadProblem, m)
	}
}

func eulerStep(f derivative, x []float64, t, h float64) []float64 {
	return axpy(x, h, f(x, t))
}

func midpointStep(f derivative, x []float64, t, h float64) []float64 {
	k1 := f(x, t)
	k2 := f(axpy(x, h/2, k1), t+h/2)
	return axpy(x, h, k2)
}

func rk4Step(f derivative, x []float64, t, h float64) []float64 {
	k1 := f(x, t)
	k2 := f(axpy(x, h/2, k1), t+h/2)
	k3 := f(axpy(x, h/2, k2), t+h/2)
	k4 := f(axpy(x, h, k3), t+h)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}

// axpy returns x + a*y as a new slice.
func axpy(x []float64, a float64, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + a*y[i]
	}
	return out
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Trajectory is a sampled solution. Sample times are strictly increasing.
type Trajectory struct {
	times  []float64
	states [][]float64
}

// NewTrajectory builds a trajectory from recorded samples. Times must be
// strictly increasing and every state must have the same length.
func NewTrajectory(times []float64, states [][]float64) (*Trajectory, error) {
	if len(times) != len(states) {
		return nil, fmt.Errorf("%w: %d times for %d states", ErrBadProblem, len(times), len(states))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: sample times not increasing at %d", ErrBadProblem, i)
		}
		if len(states[i]) != len(states[0]) {
			return nil, fmt.Errorf("%w: state %d has %d entries, want %d", ErrBadProblem, i, len(states[i]), len(states[0]))
		}
	}
	tr := &Trajectory{}
	for i := range times {
		tr.append(times[i], states[i])
	}
	return tr, nil
}

func (tr *Trajectory) append(t float64, x []float64) {
	tr.times = append(tr.times, t)
	tr.states = append(tr.states, slices.Clone(x))
}

// Len returns the number of samples.
func (tr *Trajectory) Len() int { return len(tr.times) }

// Times returns the native sample times.
func (tr *Trajectory) Times() []float64 { return slices.Clone(tr.times) }

// State returns a copy of sample i's state.
func (tr *Trajectory) State(i int) []float64 { return slices.Clone(tr.states[i]) }

// At returns the state at time t, interpolating linearly between samples and
// clamping outside the solved span.
func (tr *Trajectory) At(t float64) []float64 {
	n := len(tr.times)
	if n == 0 {
		return nil
	}
	if t <= tr.times[0] {
		return tr.State(0)
	}
	if t >= tr.times[n-1] {
		return tr.State(n - 1)
	}
	j := sort.SearchFloat64s(tr.times, t)
	if tr.times[j] == t {
		return tr.State(j)
	}
	t0, t1 := tr.times[j-1], tr.times[j]
	w := (t - t0) / (t1 - t0)
	a, b := tr.states[j-1], tr.states[j]
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + w*(b[i]-a[i])
	}
	return out
}
