package behavior

// Namespace selects which graph collection a graph belongs to.
type Namespace uint8

const (
	// NamespaceRegion holds graphs local to a single region.
	NamespaceRegion Namespace = iota
	// NamespaceBehavior holds the shared behavior library.
	NamespaceBehavior
	// NamespaceSystem holds system graphs shared by every region.
	NamespaceSystem
	// NamespaceGameLogic holds the game-wide logic graph(s).
	NamespaceGameLogic

	namespaceCount
)

var namespaceNames = [...]string{"region", "behavior", "system", "game_logic"}

func (ns Namespace) String() string {
	if int(ns) < len(namespaceNames) {
		return namespaceNames[ns]
	}
	return "unknown"
}

// ParseNamespace maps an authoring name to a namespace.
func ParseNamespace(name string) (Namespace, bool) {
	for i, candidate := range namespaceNames {
		if candidate == name {
			return Namespace(i), true
		}
	}
	return 0, false
}

// lookupOrder is the precedence used when a graph id is resolved without an
// explicit namespace. Region-local graphs shadow the shared library.
var lookupOrder = [...]Namespace{NamespaceRegion, NamespaceBehavior, NamespaceSystem, NamespaceGameLogic}

// Store holds every behavior graph reachable from a region, split by
// namespace. It is not safe for concurrent use; the owning region is the
// synchronization boundary.
type Store struct {
	graphs [namespaceCount]map[int64]*Graph
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.graphs {
		s.graphs[i] = make(map[int64]*Graph)
	}
	return s
}

// Add registers a graph in a namespace, replacing any graph with the same id
// in that namespace.
func (s *Store) Add(ns Namespace, g *Graph) {
	if s == nil || g == nil || ns >= namespaceCount {
		return
	}
	s.graphs[ns][g.ID] = g
}

// Graph resolves a graph id using the fixed namespace precedence.
func (s *Store) Graph(id int64) (*Graph, Namespace, bool) {
	if s == nil {
		return nil, 0, false
	}
	for _, ns := range lookupOrder {
		if g, ok := s.graphs[ns][id]; ok {
			return g, ns, true
		}
	}
	return nil, 0, false
}

// GraphIn resolves a graph id within one namespace.
func (s *Store) GraphIn(ns Namespace, id int64) (*Graph, bool) {
	if s == nil || ns >= namespaceCount {
		return nil, false
	}
	g, ok := s.graphs[ns][id]
	return g, ok
}

// Graphs returns the graphs in a namespace.
func (s *Store) Graphs(ns Namespace) []*Graph {
	if s == nil || ns >= namespaceCount {
		return nil
	}
	out := make([]*Graph, 0, len(s.graphs[ns]))
	for _, g := range s.graphs[ns] {
		out = append(out, g)
	}
	return out
}

// Get returns the cell at (graph, node, key), checking namespaces in
// precedence order and returning the first hit.
func (s *Store) Get(graphID, nodeID int64, key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	for _, ns := range lookupOrder {
		if v, ok := s.GetIn(ns, graphID, nodeID, key); ok {
			return v, true
		}
	}
	return Value{}, false
}

// GetIn returns the cell at (graph, node, key) within one namespace.
func (s *Store) GetIn(ns Namespace, graphID, nodeID int64, key string) (Value, bool) {
	g, ok := s.GraphIn(ns, graphID)
	if !ok {
		return Value{}, false
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return Value{}, false
	}
	return n.Value(key)
}

// Set writes the cell at (graph, node, key) where Get would read it: the
// namespace that already holds the key, or else the first namespace whose
// graph holds the node. It reports false when no graph has that node.
func (s *Store) Set(graphID, nodeID int64, key string, v Value) bool {
	ns, ok := s.writeTarget(graphID, nodeID, key)
	if !ok {
		return false
	}
	return s.SetIn(ns, graphID, nodeID, key, v)
}

func (s *Store) writeTarget(graphID, nodeID int64, key string) (Namespace, bool) {
	if s == nil {
		return 0, false
	}
	var fallback Namespace
	found := false
	for _, ns := range lookupOrder {
		g, ok := s.graphs[ns][graphID]
		if !ok {
			continue
		}
		n, ok := g.Node(nodeID)
		if !ok {
			continue
		}
		if _, ok := n.Value(key); ok {
			return ns, true
		}
		if !found {
			fallback, found = ns, true
		}
	}
	return fallback, found
}

// SetIn writes the cell at (graph, node, key) within one namespace.
func (s *Store) SetIn(ns Namespace, graphID, nodeID int64, key string, v Value) bool {
	g, ok := s.GraphIn(ns, graphID)
	if !ok {
		return false
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return false
	}
	if n.Values == nil {
		n.Values = make(map[string]Value)
	}
	n.Values[key] = v
	return true
}
