package ai

import (
	"context"
	"strconv"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/script"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
	loggingBehavior "tilesuite/server/logging/behavior"
)

// Run advances every live instance of the region through its behavior graph.
// Instances are processed one after another in index order; a move made by an
// earlier instance is visible to the pathfinding of later ones.
func Run(ctx context.Context, cfg RunConfig) Result {
	var result Result
	region := cfg.Region
	if region == nil {
		return result
	}
	env := runEnv{cfg: cfg, ctx: ctx}
	if env.cfg.Script == nil {
		env.cfg.Script = script.New(script.Config{Publisher: cfg.Publisher})
	}
	if env.cfg.Publisher == nil {
		env.cfg.Publisher = logging.NopPublisher()
	}
	if env.cfg.Metrics == nil {
		env.cfg.Metrics = telemetry.NopMetrics()
	}

	for _, inst := range region.Instances() {
		if inst == nil || !inst.Live() {
			continue
		}
		if inst.NextDecisionAt > cfg.Tick {
			continue
		}
		graph, _, ok := region.Behaviors.Graph(inst.Behavior)
		if !ok {
			continue
		}
		root, ok := graph.Root()
		if !ok {
			continue
		}

		inst.OldPosition = nil
		if inst.Values == nil {
			inst.Values = behavior.NewScope()
		}
		result.add(env.decide(inst, graph, root))

		cadence := int64(0)
		if v, ok := region.Behaviors.Get(graph.ID, root.ID, behavior.KeyCadence); ok {
			cadence = int64(v.Number())
		}
		if cadence <= 0 {
			inst.NextDecisionAt = cfg.Tick + 1
		} else {
			inst.NextDecisionAt = cfg.Tick + uint64(cadence)
		}
	}

	env.record(result)
	return result
}

type runEnv struct {
	cfg RunConfig
	ctx context.Context
}

// decide walks the graph depth-first from root. Each node emits one connector
// and every node wired to that connector is executed in authoring order.
func (env *runEnv) decide(inst *world.Instance, graph *behavior.Graph, root *behavior.Node) Result {
	res := Result{Decisions: 1}
	stack := []int64{root.ID}
	for len(stack) > 0 {
		if res.NodeVisits >= maxNodeVisitsPerTick {
			res.Truncated++
			break
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := graph.Node(id)
		if !ok {
			continue
		}
		res.NodeVisits++
		terminal := env.execute(inst, graph, node, &res)

		next := graph.Next(node.ID, terminal)
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return res
}

func (env *runEnv) execute(inst *world.Instance, graph *behavior.Graph, node *behavior.Node, res *Result) behavior.Connector {
	switch node.Kind {
	case behavior.KindVariableNumber:
		env.declare(inst, graph, node)
		return behavior.ConnectorBottom
	case behavior.KindExpression:
		env.assign(inst, graph, node, res)
		return behavior.ConnectorBottom
	case behavior.KindCondition:
		src := env.text(graph, node, behavior.KeyExpression)
		if env.cfg.Script.Bool(env.ctx, env.site(inst, graph, node), src, inst.Values, false) {
			return behavior.ConnectorSuccess
		}
		return behavior.ConnectorFail
	case behavior.KindWalkTowards:
		dp, ok := env.destination(inst, graph, node)
		if !ok {
			return env.walkFailed(inst, graph, node, nil, false, res)
		}
		if dp.Map != inst.Position.Map {
			return env.walkFailed(inst, graph, node, dp, false, res)
		}
		return env.walk(inst, graph, node, dp, false, res)
	case behavior.KindCloseIn:
		return env.closeIn(inst, graph, node, res)
	default:
		return behavior.ConnectorBottom
	}
}

// declare makes a VariableNumber node's variable visible to scripts, keeping
// any value the instance already carries.
func (env *runEnv) declare(inst *world.Instance, graph *behavior.Graph, node *behavior.Node) {
	if node.Name == "" {
		return
	}
	if _, exists := inst.Values.Get(node.Name); exists {
		return
	}
	v, _ := env.cfg.Region.Behaviors.Get(graph.ID, node.ID, behavior.KeyValue)
	inst.Values.Set(node.Name, v.Number())
}

func (env *runEnv) assign(inst *world.Instance, graph *behavior.Graph, node *behavior.Node, res *Result) {
	region := env.cfg.Region
	src := env.text(graph, node, behavior.KeyExpression)
	name, ok := env.cfg.Script.Assign(env.ctx, env.site(inst, graph, node), src, inst.Values, graph, &region.Changes)
	if !ok {
		return
	}
	res.Commits++
	value, _ := inst.Values.Get(name)
	region.Variables.Set(inst.Index, name, value)
	for _, declared := range graph.VariableNodes(name) {
		loggingBehavior.VariableChanged(env.ctx, env.cfg.Publisher, env.cfg.Tick, actorRef(inst), loggingBehavior.VariableChangedPayload{
			Graph:    graph.ID,
			Node:     declared.ID,
			Variable: name,
			Value:    value,
		}, nil)
	}
}

// destination resolves a WalkTowards cell. An empty map id means the acting
// instance's own map.
func (env *runEnv) destination(inst *world.Instance, graph *behavior.Graph, node *behavior.Node) (*world.Position, bool) {
	v, ok := env.cfg.Region.Behaviors.Get(graph.ID, node.ID, behavior.KeyDestination)
	if !ok || inst.Position == nil {
		return nil, false
	}
	mapID, x, y := v.Cell()
	if mapID == "" {
		mapID = inst.Position.Map
	}
	return world.NewPosition(mapID, x, y), true
}

// closeIn pursues the instance named by the target cell. Standing next to the
// target already counts as success. A target on another map cannot be reached.
func (env *runEnv) closeIn(inst *world.Instance, graph *behavior.Graph, node *behavior.Node, res *Result) behavior.Connector {
	name := env.text(graph, node, behavior.KeyTarget)
	target, ok := env.cfg.Region.FindInstance(name)
	if !ok || target.Index == inst.Index || target.Position == nil || inst.Position == nil {
		return env.walkFailed(inst, graph, node, nil, true, res)
	}
	if target.Position.Map != inst.Position.Map {
		return env.walkFailed(inst, graph, node, target.Position, true, res)
	}
	if adjacent(*inst.Position, *target.Position) {
		return behavior.ConnectorSuccess
	}
	return env.walk(inst, graph, node, target.Position, true, res)
}

func (env *runEnv) walk(inst *world.Instance, graph *behavior.Graph, node *behavior.Node, dp *world.Position, excludeDP bool, res *Result) behavior.Connector {
	switch env.cfg.Region.WalkTowards(inst.Index, inst.Position, dp, excludeDP) {
	case world.WalkMovedCloser:
		res.Moves++
		return behavior.ConnectorRight
	case world.WalkAlreadyAtGoal:
		return behavior.ConnectorSuccess
	default:
		return env.walkFailed(inst, graph, node, dp, excludeDP, res)
	}
}

func (env *runEnv) walkFailed(inst *world.Instance, graph *behavior.Graph, node *behavior.Node, dp *world.Position, excludeDP bool, res *Result) behavior.Connector {
	res.PathFailures++
	payload := loggingBehavior.PathNotFoundPayload{Graph: graph.ID, Node: node.ID, ExcludeDP: excludeDP}
	if inst.Position != nil {
		payload.From = inst.Position.String()
	}
	if dp != nil {
		payload.To = dp.String()
	}
	loggingBehavior.PathNotFound(env.ctx, env.cfg.Publisher, env.cfg.Tick, actorRef(inst), payload, nil)
	return behavior.ConnectorFail
}

func (env *runEnv) text(graph *behavior.Graph, node *behavior.Node, key string) string {
	v, _ := env.cfg.Region.Behaviors.Get(graph.ID, node.ID, key)
	return v.Expression()
}

func (env *runEnv) site(inst *world.Instance, graph *behavior.Graph, node *behavior.Node) script.Site {
	return script.Site{Tick: env.cfg.Tick, Instance: inst.Index, Graph: graph.ID, Node: node.ID}
}

func (env *runEnv) record(res Result) {
	m := env.cfg.Metrics
	m.Add(telemetry.MetricDecisions, uint64(res.Decisions))
	m.Add(telemetry.MetricNodeVisits, uint64(res.NodeVisits))
	m.Add(telemetry.MetricPathNotFound, uint64(res.PathFailures))
	m.Add(telemetry.MetricVariableChanges, uint64(res.Commits))
}

func actorRef(inst *world.Instance) logging.EntityRef {
	return logging.InstanceRef(strconv.Itoa(inst.Index))
}

func adjacent(a, b world.Position) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx+dy*dy == 1
}
