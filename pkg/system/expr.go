package system

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ormasoftchile/contractnet/pkg/interval"
)

// DefaultCacheSize bounds the number of compiled programs kept per Compiler.
const DefaultCacheSize = 1024

// Compiler compiles arithmetic expressions over named float64 variables.
// Programs are cached by source text and variable set.
type Compiler struct {
	cache *lru.Cache[string, *vm.Program]
}

// NewCompiler returns a compiler whose cache holds size programs.
func NewCompiler(size int) (*Compiler, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *vm.Program](size)
	if err != nil {
		return nil, err
	}
	return &Compiler{cache: cache}, nil
}

// Expr is a compiled expression.
type Expr struct {
	src  string
	prog *vm.Program
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Compile checks src against vars and returns a float64-valued program.
// Besides the variables, expressions may call sin cos tan exp log sqrt tanh
// pow clamp sat and the builtins abs min max.
func (c *Compiler) Compile(src string, vars []string) (*Expr, error) {
	names := slices.Clone(vars)
	slices.Sort(names)
	key := src + "\x00" + strings.Join(names, ",")
	if prog, ok := c.cache.Get(key); ok {
		return &Expr{src: src, prog: prog}, nil
	}

	env := make(map[string]any, len(names))
	for _, n := range names {
		env[n] = 0.0
	}
	opts := append([]expr.Option{expr.Env(env), expr.AsFloat64()}, mathFuncs...)
	prog, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	c.cache.Add(key, prog)
	return &Expr{src: src, prog: prog}, nil
}

// Eval runs the expression against env.
func (e *Expr) Eval(env map[string]any) (float64, error) {
	out, err := expr.Run(e.prog, env)
	if err != nil {
		return math.NaN(), fmt.Errorf("eval %q: %w", e.src, err)
	}
	v, ok := out.(float64)
	if !ok {
		return math.NaN(), fmt.Errorf("eval %q: got %T, want number", e.src, out)
	}
	return v, nil
}

// evalAll evaluates every expression; a failing expression yields NaN so
// the solver stops with an invalid state.
func evalAll(exprs []*Expr, env map[string]any) []float64 {
	out := make([]float64, len(exprs))
	for i, e := range exprs {
		v, err := e.Eval(env)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

var mathFuncs = []expr.Option{
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("exp", math.Exp),
	unary("log", math.Log),
	unary("sqrt", math.Sqrt),
	unary("tanh", math.Tanh),
	expr.Function("pow", func(p ...any) (any, error) {
		return math.Pow(toFloat(p[0]), toFloat(p[1])), nil
	}, new(func(float64, float64) float64)),
	expr.Function("clamp", func(p ...any) (any, error) {
		return clamp(toFloat(p[0]), toFloat(p[1]), toFloat(p[2])), nil
	}, new(func(float64, float64, float64) float64)),
	// sat(x, limit) clamps x to [-limit, limit].
	expr.Function("sat", func(p ...any) (any, error) {
		l := math.Abs(toFloat(p[1]))
		return clamp(toFloat(p[0]), -l, l), nil
	}, new(func(float64, float64) float64)),
}

func unary(name string, f func(float64) float64) expr.Option {
	return expr.Function(name, func(p ...any) (any, error) {
		return f(toFloat(p[0])), nil
	}, new(func(float64) float64))
}

// clamp leaves x unchanged when lo > hi.
func clamp(x, lo, hi float64) float64 {
	return interval.Closed(lo, hi).Clamp(x)
}

func toFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return math.NaN()
}
