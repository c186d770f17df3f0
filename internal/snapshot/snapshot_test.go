package snapshot

import (
	"errors"
	"path/filepath"
	"testing"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/world"
)

func sampleRegion() *world.Region {
	g := behavior.NewGraph(1, "npc")
	g.AddNode(behavior.NewNode(1, "root", behavior.KindBehaviorTree, nil))
	g.AddNode(behavior.NewNode(2, "hp", behavior.KindVariableNumber, map[string]behavior.Value{
		behavior.KeyValue: behavior.NumberValue(10),
	}))
	store := behavior.NewStore()
	store.Add(behavior.NamespaceBehavior, g)
	return world.NewRegion("demo", world.NewTileGrid(1), store)
}

func TestWriteReadApplyRoundTrip(t *testing.T) {
	source := sampleRegion()
	a := source.Spawn(world.SpawnConfig{Name: "a", Behavior: 1, Position: world.NewPosition("demo", 2, 3), Variables: map[string]float64{"zeta": 1, "alpha": 2}})
	a.OldPosition = world.NewPosition("demo", 1, 3)
	a.NextDecisionAt = 12
	a.Values.Set("late", 3)
	source.Variables.Set(a.Index, "hp", 4)
	source.Spawn(world.SpawnConfig{Name: "ghost", State: world.StateKilled})

	path := filepath.Join(t.TempDir(), "snaps", "demo.snap.zst")
	if err := Write(path, Capture(40, source)); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Header != (Header{Version: Version, Region: "demo", Tick: 40}) {
		t.Fatalf("unexpected header %+v", snap.Header)
	}

	target := sampleRegion()
	target.Spawn(world.SpawnConfig{Name: "stale"})
	if err := Apply(snap, target); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if target.Len() != 2 {
		t.Fatalf("expected 2 instances, got %d", target.Len())
	}
	restored, _ := target.Instance(0)
	if restored.Name != "a" || *restored.Position != *a.Position || *restored.OldPosition != *a.OldPosition || restored.NextDecisionAt != 12 {
		t.Fatalf("unexpected restored instance %+v", restored)
	}
	keys := restored.Values.Keys()
	if len(keys) != 3 || keys[0] != "alpha" || keys[1] != "zeta" || keys[2] != "late" {
		t.Fatalf("expected variable order preserved, got %v", keys)
	}
	if v, _ := target.Variables.Get(0, "hp"); v != 4 {
		t.Fatalf("expected node scope restored, got %v", v)
	}
	ghost, _ := target.Instance(1)
	if ghost.State != world.StateKilled || ghost.Position != nil {
		t.Fatalf("unexpected ghost %+v", ghost)
	}
}

func TestApplyRejectsOtherRegion(t *testing.T) {
	snap := Capture(1, sampleRegion())
	other := world.NewRegion("elsewhere", nil, nil)
	if err := Apply(snap, other); !errors.Is(err, ErrRegionMismatch) {
		t.Fatalf("expected ErrRegionMismatch, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "none.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
