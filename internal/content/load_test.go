package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/world"
)

func TestDefaultDocumentBuilds(t *testing.T) {
	doc, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	region, err := BuildDocument(doc)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if region.ID != "demo" || region.Seed != "tilesuite-demo" {
		t.Fatalf("unexpected region %s seed %s", region.ID, region.Seed)
	}
	if region.Len() != 4 {
		t.Fatalf("expected 4 instances, got %d", region.Len())
	}

	patroller, ok := region.FindInstance("patroller")
	if !ok || *patroller.Position != (world.Position{Map: "demo", X: 1, Y: 1}) {
		t.Fatalf("unexpected patroller %+v", patroller)
	}
	if v, ok := region.Variables.Get(patroller.Index, "leg"); !ok || v != 0 {
		t.Fatalf("expected node scope seeded with leg=0, got %v %v", v, ok)
	}
	if _, ok := region.FindInstance("statue"); ok {
		t.Fatalf("sleeping statue must not be found as live")
	}

	if _, ns, ok := region.Behaviors.Graph(20); !ok || ns != behavior.NamespaceGameLogic {
		t.Fatalf("expected gambler in game logic namespace, got %v %v", ns, ok)
	}
	if _, ns, ok := region.Behaviors.Graph(10); !ok || ns != behavior.NamespaceRegion {
		t.Fatalf("expected hunter in region namespace, got %v %v", ns, ok)
	}

	if region.CanGo(4, 3, nil) {
		t.Fatalf("expected wall at (4,3)")
	}
	if region.CanGo(7, 5, nil) {
		t.Fatalf("expected water at (7,5)")
	}
	if !region.CanGo(3, 3, nil) || region.CanGo(10, 0, nil) {
		t.Fatalf("unexpected passability around the map edge")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	for name, src := range map[string]string{
		"empty":         "",
		"unknown field": "region: { id: r, colour: red }",
		"bad kind":      "library: { behavior: [ { id: 1, nodes: [ { id: 1, kind: Teleporter } ] } ] }",
		"bad usage":     "region: { id: r, tiles: [ { id: t, usage: lava, from: [0, 0] } ] }",
		"bad cell":      "region: { id: r, tiles: [ { id: t, usage: water, from: [0] } ] }",
		"no id":         "region: { seed: x }",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(src)); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestBuildGraphRejectsStructuralErrors(t *testing.T) {
	root := NodeDoc{ID: 1, Kind: string(behavior.KindBehaviorTree)}
	for name, doc := range map[string]GraphDoc{
		"no root":      {ID: 1, Nodes: []NodeDoc{{ID: 1, Kind: string(behavior.KindSequence)}}},
		"dangling":     {ID: 1, Nodes: []NodeDoc{root}, Connections: []ConnectionDoc{{From: 1, Terminal: "bottom", To: 9}}},
		"duplicate":    {ID: 1, Nodes: []NodeDoc{root, root}},
		"bad terminal": {ID: 1, Nodes: []NodeDoc{root}, Connections: []ConnectionDoc{{From: 1, Terminal: "sideways", To: 1}}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := BuildGraph(doc); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadFileWithSeparateLibrary(t *testing.T) {
	dir := t.TempDir()
	regionPath := filepath.Join(dir, "region.yaml")
	libraryPath := filepath.Join(dir, "library.yaml")
	writeFile(t, regionPath, `
region:
  id: cave
  tiles:
    - { id: rock, usage: environment, from: [0, 0], to: [2, 0] }
  instances:
    - { name: bat, behavior: 3, position: { map: cave, x: 0, y: 0 } }
`)
	writeFile(t, libraryPath, `
library:
  system:
    - id: 3
      nodes:
        - { id: 1, kind: BehaviorTree }
        - { id: 2, kind: WalkTowards, values: { destination: { a: 2, b: 0 } } }
      connections:
        - { from: 1, terminal: bottom, to: 2 }
`)
	regionDoc, err := LoadFile(regionPath)
	if err != nil {
		t.Fatalf("load region: %v", err)
	}
	libraryDoc, err := LoadFile(libraryPath)
	if err != nil {
		t.Fatalf("load library: %v", err)
	}
	region, err := BuildDocument(regionDoc, libraryDoc.Library)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ns, ok := region.Behaviors.Graph(3); !ok || ns != behavior.NamespaceSystem {
		t.Fatalf("expected system graph, got %v %v", ns, ok)
	}
	if v, ok := region.Behaviors.Get(3, 2, behavior.KeyDestination); !ok || v.A != 2 {
		t.Fatalf("expected destination cell, got %+v %v", v, ok)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
