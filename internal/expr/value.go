package expr

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownIdentifier is returned when a name has no binding.
	ErrUnknownIdentifier = errors.New("expr: unknown identifier")
	// ErrUnknownFunction is returned when a call names no builtin.
	ErrUnknownFunction = errors.New("expr: unknown function")
	// ErrType is returned when an operator receives an operand of the wrong kind.
	ErrType = errors.New("expr: type mismatch")
	// ErrArity is returned when a builtin receives the wrong number of arguments.
	ErrArity = errors.New("expr: wrong number of arguments")
	// ErrEmpty is returned for blank source.
	ErrEmpty = errors.New("expr: empty expression")
)

// Kind distinguishes numeric and boolean values.
type Kind uint8

const (
	KindNumber Kind = iota
	KindBool
)

// Value is the result of evaluating an expression.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
}

// Number wraps a float.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// AsNumber returns the numeric payload when the value is a number.
func (v Value) AsNumber() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// Truthy treats booleans as-is and numbers as true when non-zero.
func (v Value) Truthy() bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return v.Num != 0
}

func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

func (v Value) number(op string) (float64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("%w: %s expects a number, got %s", ErrType, op, v)
	}
	return v.Num, nil
}

func (v Value) boolean(op string) (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("%w: %s expects a boolean, got %s", ErrType, op, v)
	}
	return v.Bool, nil
}

// Context holds the named bindings visible to an expression. Names keep the
// order in which they were first bound.
type Context struct {
	names []string
	vars  map[string]Value
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{vars: make(map[string]Value)}
}

// Set binds name to v.
func (c *Context) Set(name string, v Value) {
	if c.vars == nil {
		c.vars = make(map[string]Value)
	}
	if _, exists := c.vars[name]; !exists {
		c.names = append(c.names, name)
	}
	c.vars[name] = v
}

// SetNumber binds name to a number.
func (c *Context) SetNumber(name string, f float64) {
	c.Set(name, Number(f))
}

// Get returns the binding for name.
func (c *Context) Get(name string) (Value, bool) {
	if c == nil {
		return Value{}, false
	}
	v, ok := c.vars[name]
	return v, ok
}

// Number returns the numeric binding for name. Missing or non-numeric
// bindings report false.
func (c *Context) Number(name string) (float64, bool) {
	v, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// Names returns the bound names in binding order.
func (c *Context) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
