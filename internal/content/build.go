package content

import (
	"fmt"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/world"
)

// Build assembles a runnable region from a region document plus any shared
// libraries. Library graphs land in their namespaces and the region's own
// graphs in the region namespace, which shadows the rest on id collisions.
func Build(doc *RegionDoc, libraries ...*LibraryDoc) (*world.Region, error) {
	if doc == nil {
		return nil, fmt.Errorf("content: build: missing region")
	}
	store := behavior.NewStore()
	for _, lib := range libraries {
		if err := addLibrary(store, lib); err != nil {
			return nil, err
		}
	}
	if err := addGraphs(store, behavior.NamespaceRegion, doc.Graphs); err != nil {
		return nil, fmt.Errorf("content: region %s: %w", doc.ID, err)
	}

	tiles, err := buildTiles(doc)
	if err != nil {
		return nil, fmt.Errorf("content: region %s: %w", doc.ID, err)
	}

	region := world.NewRegion(doc.ID, tiles, store)
	if doc.Seed != "" {
		region.Seed = doc.Seed
	}
	for _, inst := range doc.Instances {
		cfg, err := spawnConfig(doc.ID, inst)
		if err != nil {
			return nil, fmt.Errorf("content: region %s: %w", doc.ID, err)
		}
		region.Spawn(cfg)
	}
	return region, nil
}

// BuildDocument builds the region carried by doc, using its own library and
// any extra libraries.
func BuildDocument(doc *Document, extra ...*LibraryDoc) (*world.Region, error) {
	if doc == nil || doc.Region == nil {
		return nil, fmt.Errorf("content: build: document has no region")
	}
	libraries := make([]*LibraryDoc, 0, len(extra)+1)
	libraries = append(libraries, extra...)
	if doc.Library != nil {
		libraries = append(libraries, doc.Library)
	}
	return Build(doc.Region, libraries...)
}

func addLibrary(store *behavior.Store, lib *LibraryDoc) error {
	if lib == nil {
		return nil
	}
	for _, part := range []struct {
		ns     behavior.Namespace
		graphs []GraphDoc
	}{
		{behavior.NamespaceBehavior, lib.Behavior},
		{behavior.NamespaceSystem, lib.System},
		{behavior.NamespaceGameLogic, lib.GameLogic},
	} {
		if err := addGraphs(store, part.ns, part.graphs); err != nil {
			return fmt.Errorf("content: library %s: %w", part.ns, err)
		}
	}
	return nil
}

func addGraphs(store *behavior.Store, ns behavior.Namespace, docs []GraphDoc) error {
	for _, gd := range docs {
		g, err := BuildGraph(gd)
		if err != nil {
			return err
		}
		store.Add(ns, g)
	}
	return nil
}

// BuildGraph converts a graph document, rejecting unknown kinds, terminals and
// dangling connections.
func BuildGraph(doc GraphDoc) (*behavior.Graph, error) {
	g := behavior.NewGraph(doc.ID, doc.Name)
	for _, nd := range doc.Nodes {
		kind := behavior.NodeKind(nd.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("graph %d: node %d: unknown kind %q", doc.ID, nd.ID, nd.Kind)
		}
		if _, dup := g.Node(nd.ID); dup {
			return nil, fmt.Errorf("graph %d: duplicate node %d", doc.ID, nd.ID)
		}
		g.AddNode(behavior.NewNode(nd.ID, nd.Name, kind, nd.Values))
	}
	for _, cd := range doc.Connections {
		terminal, ok := behavior.ParseConnector(cd.Terminal)
		if !ok {
			return nil, fmt.Errorf("graph %d: unknown terminal %q", doc.ID, cd.Terminal)
		}
		if _, ok := g.Node(cd.From); !ok {
			return nil, fmt.Errorf("graph %d: connection from unknown node %d", doc.ID, cd.From)
		}
		if _, ok := g.Node(cd.To); !ok {
			return nil, fmt.Errorf("graph %d: connection to unknown node %d", doc.ID, cd.To)
		}
		g.Connect(cd.From, terminal, cd.To)
	}
	if _, ok := g.Root(); !ok {
		return nil, fmt.Errorf("graph %d: no %s root", doc.ID, behavior.KindBehaviorTree)
	}
	return g, nil
}

func buildTiles(doc *RegionDoc) (*world.TileGrid, error) {
	layers := doc.Layers
	if layers <= 0 {
		layers = 1
	}
	grid := world.NewTileGrid(layers)
	for i, fill := range doc.Tiles {
		usage, ok := world.ParseTileUsage(fill.Usage)
		if !ok {
			return nil, fmt.Errorf("tiles[%d]: unknown usage %q", i, fill.Usage)
		}
		if fill.Layer >= layers {
			return nil, fmt.Errorf("tiles[%d]: layer %d out of range", i, fill.Layer)
		}
		to := fill.From
		if fill.To != nil {
			to = *fill.To
		}
		grid.Fill(fill.Layer, fill.From[0], fill.From[1], to[0], to[1], world.Tile{ID: fill.ID, Usage: usage})
	}
	return grid, nil
}

// spawnConfig resolves an instance document. A position without a map id
// lands on the region's own map.
func spawnConfig(regionID string, doc InstanceDoc) (world.SpawnConfig, error) {
	cfg := world.SpawnConfig{
		Name:      doc.Name,
		Behavior:  doc.Behavior,
		Variables: doc.Variables,
	}
	if doc.State != "" {
		state, ok := world.ParseInstanceState(doc.State)
		if !ok {
			return cfg, fmt.Errorf("instance %s: unknown state %q", doc.Name, doc.State)
		}
		cfg.State = state
	}
	if doc.Position != nil {
		mapID := doc.Position.Map
		if mapID == "" {
			mapID = regionID
		}
		cfg.Position = world.NewPosition(mapID, doc.Position.X, doc.Position.Y)
	}
	return cfg, nil
}
