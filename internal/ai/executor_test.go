package ai

import (
	"context"
	"testing"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/script"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging/sinks"
	loggingBehavior "tilesuite/server/logging/behavior"
)

const testMap = "m0"

func openRegion(width, height int, graphs ...*behavior.Graph) *world.Region {
	tiles := world.NewTileGrid(2)
	tiles.Fill(0, 0, 0, width-1, height-1, world.Tile{ID: "grass", Usage: world.UsageEnvironment})
	store := behavior.NewStore()
	for _, g := range graphs {
		store.Add(behavior.NamespaceRegion, g)
	}
	return world.NewRegion("test", tiles, store)
}

func walkerGraph(id int64, x, y int) *behavior.Graph {
	g := behavior.NewGraph(id, "walker")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "walk", behavior.KindWalkTowards, map[string]behavior.Value{
		behavior.KeyDestination: behavior.CellValue("", x, y),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)
	return g
}

func runTick(t *testing.T, region *world.Region, tick uint64, pub *sinks.MemorySink) Result {
	t.Helper()
	cfg := RunConfig{Tick: tick, Region: region, Script: script.New(script.Config{Dice: world.NewSeededDice("ai", "test")})}
	if pub != nil {
		cfg.Publisher = pub
	}
	return Run(context.Background(), cfg)
}

func TestRunWalksOneStepPerDecision(t *testing.T) {
	region := openRegion(5, 5, walkerGraph(10, 4, 4))
	inst := region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 10, Position: world.NewPosition(testMap, 0, 0)})

	res := runTick(t, region, 1, nil)
	if res.Decisions != 1 || res.Moves != 1 || res.NodeVisits != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if *inst.Position != (world.Position{Map: testMap, X: 1, Y: 0}) {
		t.Fatalf("expected first step east, got %v", *inst.Position)
	}
	if inst.OldPosition == nil || *inst.OldPosition != (world.Position{Map: testMap, X: 0, Y: 0}) {
		t.Fatalf("expected old position to record the transition, got %v", inst.OldPosition)
	}

	runTick(t, region, 2, nil)
	if *inst.Position != (world.Position{Map: testMap, X: 2, Y: 0}) {
		t.Fatalf("expected second step east, got %v", *inst.Position)
	}
	if *inst.OldPosition != (world.Position{Map: testMap, X: 1, Y: 0}) {
		t.Fatalf("expected old position refreshed, got %v", *inst.OldPosition)
	}
}

func TestRunOccupancyDependsOnInstanceOrder(t *testing.T) {
	build := func(leaderFirst bool) (*world.Region, *world.Instance, *world.Instance) {
		region := openRegion(3, 1, walkerGraph(1, 2, 0), walkerGraph(2, 1, 0))
		spawnLeader := func() *world.Instance {
			return region.Spawn(world.SpawnConfig{Name: "leader", Behavior: 1, Position: world.NewPosition(testMap, 1, 0)})
		}
		spawnFollower := func() *world.Instance {
			return region.Spawn(world.SpawnConfig{Name: "follower", Behavior: 2, Position: world.NewPosition(testMap, 0, 0)})
		}
		if leaderFirst {
			leader := spawnLeader()
			return region, leader, spawnFollower()
		}
		follower := spawnFollower()
		return region, spawnLeader(), follower
	}

	region, leader, follower := build(true)
	res := runTick(t, region, 1, nil)
	if res.Moves != 2 {
		t.Fatalf("expected both to move when the leader goes first, got %+v", res)
	}
	if leader.Position.X != 2 || follower.Position.X != 1 {
		t.Fatalf("unexpected positions leader=%v follower=%v", leader.Position, follower.Position)
	}

	region, leader, follower = build(false)
	res = runTick(t, region, 1, nil)
	if res.Moves != 1 || res.PathFailures != 1 {
		t.Fatalf("expected the follower to be blocked when it goes first, got %+v", res)
	}
	if leader.Position.X != 2 || follower.Position.X != 0 {
		t.Fatalf("unexpected positions leader=%v follower=%v", leader.Position, follower.Position)
	}
}

func TestRunExpressionCommitsAndRecords(t *testing.T) {
	g := behavior.NewGraph(7, "fighter")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "hp", behavior.KindVariableNumber, map[string]behavior.Value{
		behavior.KeyValue: behavior.NumberValue(10),
	}))
	g.AddNode(behavior.NewNode(3, "hurt", behavior.KindExpression, map[string]behavior.Value{
		behavior.KeyExpression: behavior.TextValue("hp = hp - 3"),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)
	g.Connect(2, behavior.ConnectorBottom, 3)

	region := openRegion(2, 2, g)
	inst := region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 7, Position: world.NewPosition(testMap, 0, 0)})
	mem := sinks.NewMemorySink()

	res := runTick(t, region, 1, mem)
	if res.Commits != 1 {
		t.Fatalf("expected one commit, got %+v", res)
	}
	if v, _ := inst.Values.Get("hp"); v != 7 {
		t.Fatalf("expected hp=7, got %v", v)
	}
	if v, _ := region.Variables.Get(inst.Index, "hp"); v != 7 {
		t.Fatalf("expected node scope to follow the commit, got %v", v)
	}
	records := region.Changes.Drain()
	want := behavior.ChangedVariable{Instance: inst.Index, Graph: 7, Node: 2, Value: 7}
	if len(records) != 1 || records[0] != want {
		t.Fatalf("expected %+v, got %+v", want, records)
	}
	if got := mem.EventsOfType(loggingBehavior.EventVariableChanged); len(got) != 1 {
		t.Fatalf("expected one variable changed event, got %d", len(got))
	}

	runTick(t, region, 2, mem)
	if v, _ := inst.Values.Get("hp"); v != 4 {
		t.Fatalf("declaration must not reset hp, got %v", v)
	}
}

func TestRunConditionBranches(t *testing.T) {
	g := behavior.NewGraph(3, "coward")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "hurt?", behavior.KindCondition, map[string]behavior.Value{
		behavior.KeyExpression: behavior.TextValue("hp < 5"),
	}))
	g.AddNode(behavior.NewNode(3, "flee", behavior.KindWalkTowards, map[string]behavior.Value{
		behavior.KeyDestination: behavior.CellValue("", 3, 0),
	}))
	g.AddNode(behavior.NewNode(4, "heal", behavior.KindExpression, map[string]behavior.Value{
		behavior.KeyExpression: behavior.TextValue("hp -= 1"),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)
	g.Connect(2, behavior.ConnectorSuccess, 3)
	g.Connect(2, behavior.ConnectorFail, 4)

	region := openRegion(4, 1, g)
	inst := region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 3, Position: world.NewPosition(testMap, 0, 0), Variables: map[string]float64{"hp": 5}})

	res := runTick(t, region, 1, nil)
	if res.Moves != 0 || res.Commits != 1 {
		t.Fatalf("expected fail branch, got %+v", res)
	}
	res = runTick(t, region, 2, nil)
	if res.Moves != 1 || inst.Position.X != 1 {
		t.Fatalf("expected success branch to move, got %+v at %v", res, inst.Position)
	}
}

func TestRunHonoursCadenceAndState(t *testing.T) {
	g := walkerGraph(4, 4, 0)
	g.Nodes[1].Values[behavior.KeyCadence] = behavior.NumberValue(3)
	region := openRegion(5, 1, g)
	inst := region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 4, Position: world.NewPosition(testMap, 0, 0)})
	sleeper := region.Spawn(world.SpawnConfig{Name: "sleeper", Behavior: 4, Position: world.NewPosition(testMap, 0, 0), State: world.StateSleeping})

	if res := runTick(t, region, 1, nil); res.Decisions != 1 {
		t.Fatalf("expected one decision, got %+v", res)
	}
	if inst.NextDecisionAt != 4 {
		t.Fatalf("expected next decision at tick 4, got %d", inst.NextDecisionAt)
	}
	for tick := uint64(2); tick < 4; tick++ {
		if res := runTick(t, region, tick, nil); res.Decisions != 0 {
			t.Fatalf("tick %d: expected no decision, got %+v", tick, res)
		}
	}
	if inst.OldPosition == nil {
		t.Fatalf("old position must persist between decisions")
	}
	if res := runTick(t, region, 4, nil); res.Decisions != 1 || inst.Position.X != 2 {
		t.Fatalf("expected decision at tick 4, got %+v at %v", res, inst.Position)
	}
	if sleeper.Position.X != 0 || sleeper.NextDecisionAt != 0 {
		t.Fatalf("sleeping instance must be skipped")
	}
}

func TestRunStopsCyclesAtVisitCap(t *testing.T) {
	g := behavior.NewGraph(9, "loop")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "a", behavior.KindSequence, nil))
	g.AddNode(behavior.NewNode(3, "b", behavior.KindSequence, nil))
	g.Connect(1, behavior.ConnectorBottom, 2)
	g.Connect(2, behavior.ConnectorBottom, 3)
	g.Connect(3, behavior.ConnectorBottom, 2)

	region := openRegion(1, 1, g)
	region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 9, Position: world.NewPosition(testMap, 0, 0)})

	res := runTick(t, region, 1, nil)
	if res.NodeVisits != maxNodeVisitsPerTick || res.Truncated != 1 {
		t.Fatalf("expected the visit cap to stop the cycle, got %+v", res)
	}
}

func TestRunCloseInStopsNextToTarget(t *testing.T) {
	g := behavior.NewGraph(5, "hunter")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "chase", behavior.KindCloseIn, map[string]behavior.Value{
		behavior.KeyTarget: behavior.TextValue("prey"),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)

	region := openRegion(4, 1, g)
	region.Spawn(world.SpawnConfig{Name: "prey", Position: world.NewPosition(testMap, 3, 0)})
	hunter := region.Spawn(world.SpawnConfig{Name: "hunter", Behavior: 5, Position: world.NewPosition(testMap, 0, 0)})

	for tick := uint64(1); tick <= 4; tick++ {
		runTick(t, region, tick, nil)
	}
	if hunter.Position.X != 2 {
		t.Fatalf("expected hunter to stop beside the prey, got %v", hunter.Position)
	}
}

func TestRunNeverChasesAcrossMaps(t *testing.T) {
	g := behavior.NewGraph(5, "hunter")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "chase", behavior.KindCloseIn, map[string]behavior.Value{
		behavior.KeyTarget: behavior.TextValue("prey"),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)

	for _, tc := range []struct {
		name  string
		graph *behavior.Graph
	}{
		{name: "close-in", graph: g},
		{name: "walk-towards", graph: walkerGraph(5, 4, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name == "walk-towards" {
				tc.graph.Nodes[2].Values[behavior.KeyDestination] = behavior.CellValue("other", 4, 0)
			}
			region := openRegion(5, 1, tc.graph)
			region.Spawn(world.SpawnConfig{Name: "prey", Position: world.NewPosition("other", 4, 0)})
			hunter := region.Spawn(world.SpawnConfig{Name: "hunter", Behavior: 5, Position: world.NewPosition(testMap, 0, 0)})
			mem := sinks.NewMemorySink()

			res := runTick(t, region, 1, mem)
			if res.Moves != 0 || res.PathFailures != 1 {
				t.Fatalf("expected a failure without moving, got %+v", res)
			}
			if *hunter.Position != (world.Position{Map: testMap, X: 0, Y: 0}) {
				t.Fatalf("hunter must stay put, got %v", *hunter.Position)
			}
			events := mem.EventsOfType(loggingBehavior.EventPathNotFound)
			if len(events) != 1 {
				t.Fatalf("expected one path event, got %d", len(events))
			}
			if payload := events[0].Payload.(loggingBehavior.PathNotFoundPayload); payload.To != world.NewPosition("other", 4, 0).String() {
				t.Fatalf("expected the foreign destination in the event, got %+v", payload)
			}
		})
	}
}

func TestRunToleratesInstanceWithoutValues(t *testing.T) {
	g := behavior.NewGraph(3, "counter")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "n", behavior.KindVariableNumber, map[string]behavior.Value{
		behavior.KeyValue: behavior.NumberValue(1),
	}))
	g.AddNode(behavior.NewNode(3, "bump", behavior.KindExpression, map[string]behavior.Value{
		behavior.KeyExpression: behavior.TextValue("n = n + 1"),
	}))
	g.Connect(1, behavior.ConnectorBottom, 2)
	g.Connect(2, behavior.ConnectorBottom, 3)

	region := openRegion(1, 1, g)
	inst := region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 3, Position: world.NewPosition(testMap, 0, 0)})
	inst.Values = nil

	res := runTick(t, region, 1, nil)
	if res.Commits != 1 {
		t.Fatalf("expected one commit, got %+v", res)
	}
	if v, ok := inst.Values.Get("n"); !ok || v != 2 {
		t.Fatalf("expected n=2, got %v %v", v, ok)
	}
}

func TestRunReportsMissingPath(t *testing.T) {
	region := openRegion(3, 1, walkerGraph(1, 2, 0))
	region.Tiles.(*world.TileGrid).Set(1, 1, 0, world.Tile{ID: "river", Usage: world.UsageWater})
	region.Spawn(world.SpawnConfig{Name: "npc", Behavior: 1, Position: world.NewPosition(testMap, 0, 0)})
	mem := sinks.NewMemorySink()

	res := runTick(t, region, 1, mem)
	if res.PathFailures != 1 {
		t.Fatalf("expected a path failure, got %+v", res)
	}
	events := mem.EventsOfType(loggingBehavior.EventPathNotFound)
	if len(events) != 1 || events[0].Actor.ID != "0" {
		t.Fatalf("expected one path event for instance 0, got %+v", events)
	}
}
