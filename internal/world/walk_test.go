package world

import "testing"

const testMap = "m0"

func newOpenRegion(width, height int) *Region {
	tiles := NewTileGrid(2)
	tiles.Fill(0, 0, 0, width-1, height-1, Tile{ID: "grass", Usage: UsageEnvironment})
	return NewRegion("test", tiles, nil)
}

func TestWalkTowardsFirstStepEast(t *testing.T) {
	region := newOpenRegion(5, 5)
	inst := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 0, 0)})

	result := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, 4, 4), false)
	if result != WalkMovedCloser {
		t.Fatalf("expected moved closer, got %v", result)
	}
	if *inst.Position != (Position{Map: testMap, X: 1, Y: 0}) {
		t.Fatalf("expected first step east to (1,0), got %v", *inst.Position)
	}
	if inst.OldPosition == nil || *inst.OldPosition != (Position{Map: testMap, X: 0, Y: 0}) {
		t.Fatalf("expected old position (0,0), got %v", inst.OldPosition)
	}
}

func TestWalkTowardsRoutesAroundBlockingTile(t *testing.T) {
	for _, usage := range []TileUsage{UsageEnvBlocking, UsageWater} {
		t.Run(usage.String(), func(t *testing.T) {
			region := newOpenRegion(5, 5)
			region.Tiles.(*TileGrid).Set(1, 1, 0, Tile{ID: "rock", Usage: usage})
			inst := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 0, 0)})

			result := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, 4, 4), false)
			if result != WalkMovedCloser {
				t.Fatalf("expected moved closer, got %v", result)
			}
			if *inst.Position != (Position{Map: testMap, X: 0, Y: 1}) {
				t.Fatalf("expected detour south to (0,1), got %v", *inst.Position)
			}
		})
	}
}

func TestWalkTowardsTieBreakOrder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		block []Cell
		want  Cell
	}{
		{name: "east-first", want: Cell{X: 3, Y: 2}},
		{name: "south-when-east-blocked", block: []Cell{{X: 3, Y: 2}}, want: Cell{X: 2, Y: 3}},
		{name: "west-when-east-south-blocked", block: []Cell{{X: 3, Y: 2}, {X: 2, Y: 3}}, want: Cell{X: 1, Y: 2}},
		{name: "north-last", block: []Cell{{X: 3, Y: 2}, {X: 2, Y: 3}, {X: 1, Y: 2}}, want: Cell{X: 2, Y: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// The goal sits diagonally so several first steps tie.
			region := newOpenRegion(5, 5)
			grid := region.Tiles.(*TileGrid)
			for _, c := range tc.block {
				grid.Set(1, c.X, c.Y, Tile{ID: "wall", Usage: UsageEnvBlocking})
			}
			inst := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 2, 2)})
			goal := ringGoal(tc.want)
			result := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, goal.X, goal.Y), false)
			if result != WalkMovedCloser {
				t.Fatalf("expected moved closer, got %v", result)
			}
			if inst.Position.Cell() != tc.want {
				t.Fatalf("expected step to %v, got %v", tc.want, inst.Position.Cell())
			}
		})
	}
}

// ringGoal picks a destination two steps past the expected first step so the
// path length stays equal across the compared directions.
func ringGoal(step Cell) Cell {
	switch step {
	case Cell{X: 3, Y: 2}:
		return Cell{X: 3, Y: 3}
	case Cell{X: 2, Y: 3}:
		return Cell{X: 1, Y: 3}
	case Cell{X: 1, Y: 2}:
		return Cell{X: 1, Y: 1}
	default:
		return Cell{X: 2, Y: 0}
	}
}

func TestWalkTowardsDeterministic(t *testing.T) {
	var first Position
	for i := 0; i < 5; i++ {
		region := newOpenRegion(6, 6)
		region.Spawn(SpawnConfig{Name: "blocker", Position: NewPosition(testMap, 1, 0)})
		inst := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 0, 0)})
		if got := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, 5, 5), false); got != WalkMovedCloser {
			t.Fatalf("run %d: expected moved closer, got %v", i, got)
		}
		if i == 0 {
			first = *inst.Position
			continue
		}
		if *inst.Position != first {
			t.Fatalf("run %d: expected %v, got %v", i, first, *inst.Position)
		}
	}
}

func TestWalkTowardsExcludeDestination(t *testing.T) {
	build := func() (*Region, *Instance, *Position) {
		region := newOpenRegion(3, 1)
		target := region.Spawn(SpawnConfig{Name: "target", Position: NewPosition(testMap, 2, 0)})
		hunter := region.Spawn(SpawnConfig{Name: "hunter", Position: NewPosition(testMap, 0, 0)})
		return region, hunter, target.Position
	}

	region, hunter, dp := build()
	if got := region.WalkTowards(hunter.Index, hunter.Position, dp, false); got != WalkNoPath {
		t.Fatalf("expected occupied destination to block, got %v", got)
	}

	region, hunter, dp = build()
	if got := region.WalkTowards(hunter.Index, hunter.Position, dp, true); got != WalkMovedCloser {
		t.Fatalf("expected exclude_dp to allow progress, got %v", got)
	}
	if hunter.Position.Cell() != (Cell{X: 1, Y: 0}) {
		t.Fatalf("expected hunter at (1,0), got %v", hunter.Position)
	}
}

func TestWalkTowardsIgnoresNonNormalAndOtherMaps(t *testing.T) {
	region := newOpenRegion(3, 1)
	sleeper := region.Spawn(SpawnConfig{Name: "sleeper", Position: NewPosition(testMap, 1, 0), State: StateSleeping})
	region.Spawn(SpawnConfig{Name: "elsewhere", Position: NewPosition("m1", 1, 0)})
	walker := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 0, 0)})

	occupied := region.Occupied(walker.Index, testMap, nil)
	if _, ok := occupied[sleeper.Position.Cell()]; ok {
		t.Fatalf("non-normal instance must not occupy cells")
	}
	if len(occupied) != 0 {
		t.Fatalf("expected no occupants, got %v", occupied)
	}
	if got := region.WalkTowards(walker.Index, walker.Position, NewPosition(testMap, 2, 0), false); got != WalkMovedCloser {
		t.Fatalf("expected moved closer, got %v", got)
	}
}

func TestWalkTowardsEdgeCases(t *testing.T) {
	region := newOpenRegion(3, 3)
	inst := region.Spawn(SpawnConfig{Name: "walker", Position: NewPosition(testMap, 1, 1)})

	if got := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, 1, 1), false); got != WalkAlreadyAtGoal {
		t.Fatalf("expected already at goal, got %v", got)
	}
	if inst.OldPosition != nil {
		t.Fatalf("already-at-goal must not move")
	}
	if got := region.WalkTowards(inst.Index, nil, NewPosition(testMap, 1, 1), false); got != WalkNoPath {
		t.Fatalf("expected missing start to fail, got %v", got)
	}
	if got := region.WalkTowards(inst.Index, inst.Position, nil, false); got != WalkNoPath {
		t.Fatalf("expected missing destination to fail, got %v", got)
	}
	if got := region.WalkTowards(inst.Index, inst.Position, NewPosition(testMap, 9, 9), false); got != WalkNoPath {
		t.Fatalf("expected off-map destination to fail, got %v", got)
	}
}

func TestDiceRollsWithinRange(t *testing.T) {
	dice := NewSeededDice(DefaultSeed, "test")
	for i := 0; i < 200; i++ {
		if v := dice.Roll(6); v < 1 || v > 6 {
			t.Fatalf("roll out of range: %d", v)
		}
	}
	if v := dice.Roll(0); v != 1 {
		t.Fatalf("expected degenerate roll to be 1, got %d", v)
	}
	a := NewSeededDice("seed", "x")
	b := NewSeededDice("seed", "x")
	for i := 0; i < 20; i++ {
		if a.Roll(20) != b.Roll(20) {
			t.Fatalf("expected identical streams for identical seeds")
		}
	}
}
