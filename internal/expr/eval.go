package expr

import (
	"fmt"
	"math"
	"strings"
)

// Program is a compiled expression source.
type Program struct {
	source string
	ast    *programAST
}

// Compile parses src. Trailing statement separators are ignored.
func Compile(src string) (*Program, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(src), "; \t\r\n")
	if trimmed == "" {
		return nil, ErrEmpty
	}
	ast, err := parser.ParseString("", trimmed)
	if err != nil {
		return nil, fmt.Errorf("expr: parse %q: %w", src, err)
	}
	return &Program{source: src, ast: ast}, nil
}

// Eval compiles and evaluates src against ctx.
func Eval(src string, ctx *Context) (Value, error) {
	p, err := Compile(src)
	if err != nil {
		return Value{}, err
	}
	return p.Eval(ctx)
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Eval runs every statement in order against ctx and returns the value of
// the last one. Assignments mutate ctx and evaluate to the assigned value.
func (p *Program) Eval(ctx *Context) (result Value, err error) {
	if p == nil || p.ast == nil {
		return Value{}, ErrEmpty
	}
	if ctx == nil {
		ctx = NewContext()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expr: evaluate %q: %v", p.source, r)
		}
	}()
	for _, stmt := range p.ast.Statements {
		result, err = evalStatement(stmt, ctx)
		if err != nil {
			return Value{}, err
		}
	}
	return result, nil
}

func evalStatement(stmt *statementAST, ctx *Context) (Value, error) {
	if stmt.Assign != nil {
		return evalAssign(stmt.Assign, ctx)
	}
	return evalExpr(stmt.Expr, ctx)
}

func evalAssign(a *assignAST, ctx *Context) (Value, error) {
	rhs, err := evalExpr(a.Value, ctx)
	if err != nil {
		return Value{}, err
	}
	if a.Op == "=" {
		ctx.Set(a.Name, rhs)
		return rhs, nil
	}
	current, ok := ctx.Get(a.Name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, a.Name)
	}
	out, err := arithmetic(strings.TrimSuffix(a.Op, "="), current, rhs)
	if err != nil {
		return Value{}, err
	}
	ctx.Set(a.Name, out)
	return out, nil
}

func evalExpr(e *exprAST, ctx *Context) (Value, error) {
	left, err := evalAnd(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, next := range e.Rest {
		lb, err := left.boolean("||")
		if err != nil {
			return Value{}, err
		}
		if lb {
			return Bool(true), nil
		}
		right, err := evalAnd(next, ctx)
		if err != nil {
			return Value{}, err
		}
		rb, err := right.boolean("||")
		if err != nil {
			return Value{}, err
		}
		left = Bool(rb)
	}
	return left, nil
}

func evalAnd(e *andAST, ctx *Context) (Value, error) {
	left, err := evalEquality(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, next := range e.Rest {
		lb, err := left.boolean("&&")
		if err != nil {
			return Value{}, err
		}
		if !lb {
			return Bool(false), nil
		}
		right, err := evalEquality(next, ctx)
		if err != nil {
			return Value{}, err
		}
		rb, err := right.boolean("&&")
		if err != nil {
			return Value{}, err
		}
		left = Bool(rb)
	}
	return left, nil
}

func evalEquality(e *equalityAST, ctx *Context) (Value, error) {
	left, err := evalComparison(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, op := range e.Rest {
		right, err := evalComparison(op.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		if left.Kind != right.Kind {
			return Value{}, fmt.Errorf("%w: cannot compare %s and %s", ErrType, left, right)
		}
		equal := left == right
		if op.Op == "!=" {
			equal = !equal
		}
		left = Bool(equal)
	}
	return left, nil
}

func evalComparison(e *comparisonAST, ctx *Context) (Value, error) {
	left, err := evalAdditive(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, op := range e.Rest {
		right, err := evalAdditive(op.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		l, err := left.number(op.Op)
		if err != nil {
			return Value{}, err
		}
		r, err := right.number(op.Op)
		if err != nil {
			return Value{}, err
		}
		switch op.Op {
		case "<":
			left = Bool(l < r)
		case "<=":
			left = Bool(l <= r)
		case ">":
			left = Bool(l > r)
		case ">=":
			left = Bool(l >= r)
		}
	}
	return left, nil
}

func evalAdditive(e *additiveAST, ctx *Context) (Value, error) {
	left, err := evalTerm(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, op := range e.Rest {
		right, err := evalTerm(op.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		if left, err = arithmetic(op.Op, left, right); err != nil {
			return Value{}, err
		}
	}
	return left, nil
}

func evalTerm(e *termAST, ctx *Context) (Value, error) {
	left, err := evalUnary(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	for _, op := range e.Rest {
		right, err := evalUnary(op.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		if left, err = arithmetic(op.Op, left, right); err != nil {
			return Value{}, err
		}
	}
	return left, nil
}

func arithmetic(op string, left, right Value) (Value, error) {
	l, err := left.number(op)
	if err != nil {
		return Value{}, err
	}
	r, err := right.number(op)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case "+":
		return Number(l + r), nil
	case "-":
		return Number(l - r), nil
	case "*":
		return Number(l * r), nil
	case "/":
		return Number(l / r), nil
	case "%":
		return Number(math.Mod(l, r)), nil
	}
	return Value{}, fmt.Errorf("expr: unsupported operator %q", op)
}

func evalUnary(e *unaryAST, ctx *Context) (Value, error) {
	if e.Primary != nil {
		return evalPrimary(e.Primary, ctx)
	}
	operand, err := evalUnary(e.Operand, ctx)
	if err != nil {
		return Value{}, err
	}
	if e.Op == "!" {
		b, err := operand.boolean("!")
		if err != nil {
			return Value{}, err
		}
		return Bool(!b), nil
	}
	n, err := operand.number("-")
	if err != nil {
		return Value{}, err
	}
	return Number(-n), nil
}

func evalPrimary(p *primaryAST, ctx *Context) (Value, error) {
	switch {
	case p.Number != nil:
		return Number(*p.Number), nil
	case p.Bool != nil:
		return Bool(*p.Bool == "true"), nil
	case p.Call != nil:
		return evalCall(p.Call, ctx)
	case p.Ident != nil:
		v, ok := ctx.Get(*p.Ident)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, *p.Ident)
		}
		return v, nil
	case p.Sub != nil:
		return evalExpr(p.Sub, ctx)
	}
	return Value{}, ErrEmpty
}
