package behavior

import "sort"

// NodeKind tags the behavior a node performs when executed.
type NodeKind string

const (
	KindBehaviorTree   NodeKind = "BehaviorTree"
	KindVariableNumber NodeKind = "VariableNumber"
	KindExpression     NodeKind = "Expression"
	KindCondition      NodeKind = "Condition"
	KindWalkTowards    NodeKind = "WalkTowards"
	KindCloseIn        NodeKind = "CloseIn"
	KindSequence       NodeKind = "Sequence"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindBehaviorTree, KindVariableNumber, KindExpression, KindCondition,
		KindWalkTowards, KindCloseIn, KindSequence:
		return true
	}
	return false
}

// Connector identifies the terminal of a node a connection leaves from. The
// outcome of executing a node selects which connector is followed next.
type Connector uint8

const (
	ConnectorTop Connector = iota
	ConnectorRight
	ConnectorBottom
	ConnectorLeft
	ConnectorSuccess
	ConnectorFail
)

var connectorNames = [...]string{"top", "right", "bottom", "left", "success", "fail"}

func (c Connector) String() string {
	if int(c) < len(connectorNames) {
		return connectorNames[c]
	}
	return "unknown"
}

// ParseConnector maps an authoring name to a connector.
func ParseConnector(name string) (Connector, bool) {
	for i, candidate := range connectorNames {
		if candidate == name {
			return Connector(i), true
		}
	}
	return 0, false
}

// Well-known value keys.
const (
	KeyValue       = "value"
	KeyExpression  = "expression"
	KeyDestination = "destination"
	KeyTarget      = "target"
	KeyCadence     = "cadence"
)

// Node is a single operation within a behavior graph.
type Node struct {
	ID     int64
	Name   string
	Kind   NodeKind
	Values map[string]Value
}

// NewNode creates a node with its value cells. The provided map is copied so
// later mutation of the argument does not leak into the graph.
func NewNode(id int64, name string, kind NodeKind, values map[string]Value) *Node {
	cells := make(map[string]Value, len(values))
	for k, v := range values {
		cells[k] = v
	}
	return &Node{ID: id, Name: name, Kind: kind, Values: cells}
}

// Value looks up a cell by key. Unknown keys are reported as missing rather
// than default-initialised.
func (n *Node) Value(key string) (Value, bool) {
	if n == nil {
		return Value{}, false
	}
	v, ok := n.Values[key]
	return v, ok
}

// Connection links a connector on one node to another node.
type Connection struct {
	From     int64
	Terminal Connector
	To       int64
}

// Graph is a behavior graph: nodes keyed by id plus the connections between
// them.
type Graph struct {
	ID          int64
	Name        string
	Nodes       map[int64]*Node
	Connections []Connection
}

// NewGraph creates an empty graph.
func NewGraph(id int64, name string) *Graph {
	return &Graph{ID: id, Name: name, Nodes: make(map[int64]*Node)}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(node *Node) {
	if g == nil || node == nil {
		return
	}
	if g.Nodes == nil {
		g.Nodes = make(map[int64]*Node)
	}
	g.Nodes[node.ID] = node
}

// Connect appends a connection.
func (g *Graph) Connect(from int64, terminal Connector, to int64) {
	if g == nil {
		return
	}
	g.Connections = append(g.Connections, Connection{From: from, Terminal: terminal, To: to})
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.Nodes[id]
	return n, ok
}

// Root returns the BehaviorTree node with the lowest id.
func (g *Graph) Root() (*Node, bool) {
	for _, id := range g.NodeIDs() {
		if n := g.Nodes[id]; n.Kind == KindBehaviorTree {
			return n, true
		}
	}
	return nil, false
}

// Next returns the node ids connected to the given terminal of a node, in
// authoring order.
func (g *Graph) Next(from int64, terminal Connector) []int64 {
	if g == nil {
		return nil
	}
	var out []int64
	for _, c := range g.Connections {
		if c.From == from && c.Terminal == terminal {
			out = append(out, c.To)
		}
	}
	return out
}

// NodeIDs returns the node ids in ascending order.
func (g *Graph) NodeIDs() []int64 {
	if g == nil {
		return nil
	}
	ids := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VariableNodes returns every VariableNumber node named name, ordered by id.
func (g *Graph) VariableNodes(name string) []*Node {
	var out []*Node
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Kind == KindVariableNumber && n.Name == name {
			out = append(out, n)
		}
	}
	return out
}
