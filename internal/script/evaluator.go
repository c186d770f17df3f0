// Package script binds instance state into the expression language: instance
// variables plus freshly rolled dice symbols, evaluated either for a number,
// a condition, or a single variable assignment.
package script

import (
	"context"
	"strconv"
	"sync"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/expr"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
	loggingBehavior "tilesuite/server/logging/behavior"
)

// diceSides lists the synthetic dice symbols d2, d4, ..., d20.
var diceSides = [...]int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}

// Evaluator evaluates node expressions. The program cache makes it safe to
// share between regions; rolls go through the injected RandomSource.
type Evaluator struct {
	dice      world.RandomSource
	publisher logging.Publisher

	mu    sync.RWMutex
	cache map[string]*expr.Program
}

// Config wires an Evaluator.
type Config struct {
	Dice      world.RandomSource
	Publisher logging.Publisher
}

// New creates an evaluator. Without dice it uses the default deterministic
// stream.
func New(cfg Config) *Evaluator {
	dice := cfg.Dice
	if dice == nil {
		dice = world.NewSeededDice(world.DefaultSeed, "script")
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Evaluator{dice: dice, publisher: pub, cache: make(map[string]*expr.Program)}
}

// Site identifies where an expression came from, for failure events.
type Site struct {
	Tick     uint64
	Instance int
	Graph    int64
	Node     int64
}

// Number evaluates src and returns its numeric result, or def when the
// expression fails or does not produce a number.
func (e *Evaluator) Number(ctx context.Context, site Site, src string, vars *behavior.Scope, def float64) float64 {
	v, err := e.eval(src, e.bind(vars))
	if err != nil {
		e.fail(ctx, site, src, err)
		return def
	}
	n, ok := v.AsNumber()
	if !ok {
		return def
	}
	return n
}

// Bool evaluates src as a condition. Numbers are true when non-zero; failures
// yield def.
func (e *Evaluator) Bool(ctx context.Context, site Site, src string, vars *behavior.Scope, def bool) bool {
	v, err := e.eval(src, e.bind(vars))
	if err != nil {
		e.fail(ctx, site, src, err)
		return def
	}
	return v.Truthy()
}

// Assign runs src as statements and commits back to vars the first variable,
// in vars order, whose value changed. Only that one variable is written. When
// graph has VariableNumber nodes with the same name, a ChangedVariable is
// appended to changes for each of them. It returns the committed name.
func (e *Evaluator) Assign(ctx context.Context, site Site, src string, vars *behavior.Scope, graph *behavior.Graph, changes *behavior.ChangeLog) (string, bool) {
	if vars == nil {
		return "", false
	}
	bound := e.bind(vars)
	if _, err := e.eval(src, bound); err != nil {
		e.fail(ctx, site, src, err)
		return "", false
	}
	for _, name := range vars.Keys() {
		original, _ := vars.Get(name)
		updated, ok := bound.Number(name)
		if !ok || updated == original {
			continue
		}
		vars.Set(name, updated)
		if graph != nil {
			for _, node := range graph.VariableNodes(name) {
				changes.Append(behavior.ChangedVariable{
					Instance: site.Instance,
					Graph:    graph.ID,
					Node:     node.ID,
					Value:    updated,
				})
			}
		}
		return name, true
	}
	return "", false
}

// bind builds the evaluation context: instance variables first, then one
// fresh roll per dice symbol. Dice shadow variables of the same name.
func (e *Evaluator) bind(vars *behavior.Scope) *expr.Context {
	ctx := expr.NewContext()
	for _, name := range vars.Keys() {
		v, _ := vars.Get(name)
		ctx.SetNumber(name, v)
	}
	for _, sides := range diceSides {
		ctx.SetNumber("d"+strconv.Itoa(sides), float64(e.dice.Roll(sides)))
	}
	return ctx
}

func (e *Evaluator) eval(src string, ctx *expr.Context) (expr.Value, error) {
	program, err := e.compile(src)
	if err != nil {
		return expr.Value{}, err
	}
	return program.Eval(ctx)
}

func (e *Evaluator) compile(src string) (*expr.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[src]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}
	program, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[src] = program
	e.mu.Unlock()
	return program, nil
}

func (e *Evaluator) fail(ctx context.Context, site Site, src string, err error) {
	loggingBehavior.ExpressionFailed(ctx, e.publisher, site.Tick, logging.InstanceRef(strconv.Itoa(site.Instance)), loggingBehavior.ExpressionFailedPayload{
		Graph:      site.Graph,
		Node:       site.Node,
		Expression: src,
		Error:      err.Error(),
	}, nil)
}
