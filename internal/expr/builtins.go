package expr

import (
	"fmt"
	"math"
)

type builtin struct {
	arity int
	fn    func(args []float64) float64
}

var builtins = map[string]builtin{
	"abs":   {arity: 1, fn: func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {arity: 1, fn: func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {arity: 1, fn: func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {arity: 1, fn: func(a []float64) float64 { return math.Round(a[0]) }},
	"sqrt":  {arity: 1, fn: func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"min":   {arity: 2, fn: func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {arity: 2, fn: func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"clamp": {arity: 3, fn: func(a []float64) float64 { return math.Max(a[1], math.Min(a[2], a[0])) }},
}

func evalCall(c *callAST, ctx *Context) (Value, error) {
	fn, ok := builtins[c.Name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownFunction, c.Name)
	}
	if len(c.Args) != fn.arity {
		return Value{}, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, c.Name, fn.arity, len(c.Args))
	}
	args := make([]float64, len(c.Args))
	for i, arg := range c.Args {
		v, err := evalExpr(arg, ctx)
		if err != nil {
			return Value{}, err
		}
		n, err := v.number(c.Name)
		if err != nil {
			return Value{}, err
		}
		args[i] = n
	}
	return Number(fn.fn(args)), nil
}
