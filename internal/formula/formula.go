// Package formula compiles user-supplied numeric expressions used by mode
// transforms and activation conditions.
//
// Programs are compiled once on the control path. Each Program carries its
// own VM and environment so evaluation reuses them; a Program must only be
// evaluated from one goroutine at a time.
package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	// ErrCompile is returned when an expression does not compile
	ErrCompile = errors.New("formula does not compile")
	// ErrEvaluation is returned when an expression fails at run time or
	// yields a value that is not a finite number
	ErrEvaluation = errors.New("formula evaluation failed")
)

// Env is the evaluation environment visible to expressions.
//
//	x      input value (after the range transform for control formulas,
//	       the target value for feedback formulas)
//	y      current target value
//	y_last last value this mapping produced
//	p      host parameter values, indexed from 0
type Env struct {
	X     float64   `expr:"x"`
	Y     float64   `expr:"y"`
	YLast float64   `expr:"y_last"`
	P     []float64 `expr:"p"`
}

// Program is a compiled numeric expression
type Program struct {
	source  string
	program *vm.Program
	env     Env
	machine vm.VM
}

// Compile compiles a numeric expression such as "x * x" or "1 - x"
func Compile(source string) (*Program, error) {
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, source, err)
	}
	return &Program{source: source, program: program}, nil
}

// Source returns the expression text
func (p *Program) Source() string {
	return p.source
}

// Eval evaluates the expression. Results outside [0,1] are returned as is;
// callers clamp.
func (p *Program) Eval(x, y, yLast float64, params []float64) (float64, error) {
	p.env.X, p.env.Y, p.env.YLast, p.env.P = x, y, yLast, params
	out, err := p.machine.Run(p.program, &p.env)
	if err != nil {
		return 0, ErrEvaluation
	}
	v, ok := out.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrEvaluation
	}
	return v, nil
}

// Condition is a compiled boolean expression over host parameters
type Condition struct {
	source  string
	program *vm.Program
	env     Env
	machine vm.VM
}

// CompileCondition compiles a boolean expression such as "p[0] > 0.5"
func CompileCondition(source string) (*Condition, error) {
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, source, err)
	}
	return &Condition{source: source, program: program}, nil
}

// Source returns the expression text
func (c *Condition) Source() string {
	return c.source
}

// Holds evaluates the condition against the given parameter values
func (c *Condition) Holds(params []float64) (bool, error) {
	c.env.P = params
	out, err := c.machine.Run(c.program, &c.env)
	if err != nil {
		return false, ErrEvaluation
	}
	b, ok := out.(bool)
	if !ok {
		return false, ErrEvaluation
	}
	return b, nil
}
