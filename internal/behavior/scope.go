package behavior

// VariableStore is per-instance numeric variable storage.
type VariableStore interface {
	Get(instance int, key string) (float64, bool)
	Set(instance int, key string, value float64) bool
}

// NumberOrZero reads a variable and converts a miss into zero. The stores
// themselves never default.
func NumberOrZero(store VariableStore, instance int, key string) float64 {
	if store == nil {
		return 0
	}
	v, _ := store.Get(instance, key)
	return v
}

// Scope is an instance values map: insert-or-update, iterated in insertion
// order.
type Scope struct {
	keys   []string
	values map[string]float64
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]float64)}
}

// Get returns the variable value.
func (s *Scope) Get(key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Set inserts or updates a variable. Setting on a nil scope does nothing.
func (s *Scope) Set(key string, value float64) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = make(map[string]float64)
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Keys returns the variable names in insertion order.
func (s *Scope) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len reports the number of variables.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Clone returns a deep copy.
func (s *Scope) Clone() *Scope {
	out := NewScope()
	if s == nil {
		return out
	}
	for _, k := range s.keys {
		out.Set(k, s.values[k])
	}
	return out
}

// NodeScope is the node-oriented variable scope. Each instance is seeded with
// the VariableNumber nodes of its graph and afterwards only pre-existing
// variables can be updated, so scripts cannot create unscripted variables.
type NodeScope struct {
	vars map[int]map[string]float64
}

// NewNodeScope creates an empty node scope.
func NewNodeScope() *NodeScope {
	return &NodeScope{vars: make(map[int]map[string]float64)}
}

// Seed declares the variables of graph for instance, initialised from each
// VariableNumber node's value cell. Redeclaring keeps existing values.
func (s *NodeScope) Seed(instance int, g *Graph) {
	if s == nil || g == nil {
		return
	}
	vars, ok := s.vars[instance]
	if !ok {
		vars = make(map[string]float64)
		s.vars[instance] = vars
	}
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Kind != KindVariableNumber {
			continue
		}
		if _, exists := vars[n.Name]; exists {
			continue
		}
		v, _ := n.Value(KeyValue)
		vars[n.Name] = v.Number()
	}
}

// Get returns the variable value for instance.
func (s *NodeScope) Get(instance int, key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.vars[instance][key]
	return v, ok
}

// Set updates an existing variable. Unknown instances or keys are left
// untouched and reported as false.
func (s *NodeScope) Set(instance int, key string, value float64) bool {
	if s == nil {
		return false
	}
	vars, ok := s.vars[instance]
	if !ok {
		return false
	}
	if _, exists := vars[key]; !exists {
		return false
	}
	vars[key] = value
	return true
}

// Variables returns a copy of the variables declared for instance.
func (s *NodeScope) Variables(instance int) map[string]float64 {
	if s == nil {
		return nil
	}
	vars, ok := s.vars[instance]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// Restore replaces the variables declared for instance.
func (s *NodeScope) Restore(instance int, vars map[string]float64) {
	if s == nil {
		return
	}
	copied := make(map[string]float64, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	s.vars[instance] = copied
}

// Forget drops every variable declared for instance.
func (s *NodeScope) Forget(instance int) {
	if s == nil {
		return
	}
	delete(s.vars, instance)
}

var _ VariableStore = (*NodeScope)(nil)
