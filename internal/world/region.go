package world

import (
	"sort"

	"tilesuite/server/internal/behavior"
)

// Region is the world aggregate for one tile map: the instance arena, the
// terrain, the behavior graphs and the variable scopes. It is not safe for
// concurrent use; whoever drives the tick owns it exclusively.
type Region struct {
	ID   string
	Seed string

	Tiles     TileProvider
	Behaviors *behavior.Store
	Variables *behavior.NodeScope
	Changes   behavior.ChangeLog

	instances []*Instance
}

// NewRegion creates an empty region. Nil collaborators are replaced with
// empty defaults.
func NewRegion(id string, tiles TileProvider, store *behavior.Store) *Region {
	if tiles == nil {
		tiles = NewTileGrid(1)
	}
	if store == nil {
		store = behavior.NewStore()
	}
	return &Region{
		ID:        id,
		Seed:      DefaultSeed,
		Tiles:     tiles,
		Behaviors: store,
		Variables: behavior.NewNodeScope(),
	}
}

// SpawnConfig describes a new instance.
type SpawnConfig struct {
	Name      string
	Behavior  int64
	Position  *Position
	State     InstanceState
	Variables map[string]float64
}

// Spawn appends an instance to the arena and seeds its node scope from its
// behavior graph. Variables are inserted in sorted key order so the values
// map iterates deterministically.
func (r *Region) Spawn(cfg SpawnConfig) *Instance {
	inst := &Instance{
		Index:    len(r.instances),
		Name:     cfg.Name,
		Behavior: cfg.Behavior,
		State:    cfg.State,
		Position: clonePosition(cfg.Position),
		Values:   behavior.NewScope(),
	}
	keys := make([]string, 0, len(cfg.Variables))
	for k := range cfg.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		inst.Values.Set(k, cfg.Variables[k])
	}
	r.instances = append(r.instances, inst)
	if g, _, ok := r.Behaviors.Graph(cfg.Behavior); ok {
		r.Variables.Seed(inst.Index, g)
	}
	return inst
}

// Restore replaces the instance arena, e.g. from a snapshot.
func (r *Region) Restore(instances []*Instance) {
	r.instances = make([]*Instance, len(instances))
	for i, inst := range instances {
		copied := inst.Clone()
		copied.Index = i
		if copied.Values == nil {
			copied.Values = behavior.NewScope()
		}
		r.instances[i] = copied
	}
}

// Instance returns the instance at index.
func (r *Region) Instance(index int) (*Instance, bool) {
	if r == nil || index < 0 || index >= len(r.instances) {
		return nil, false
	}
	return r.instances[index], true
}

// Instances returns the arena. The slice is shared; callers must not retain
// it across ticks.
func (r *Region) Instances() []*Instance {
	if r == nil {
		return nil
	}
	return r.instances
}

// Len reports the number of instances ever spawned.
func (r *Region) Len() int {
	if r == nil {
		return 0
	}
	return len(r.instances)
}

// FindInstance returns the first live instance with the given name.
func (r *Region) FindInstance(name string) (*Instance, bool) {
	if r == nil {
		return nil, false
	}
	for _, inst := range r.instances {
		if inst.Live() && inst.Name == name {
			return inst, true
		}
	}
	return nil, false
}

// SetState changes the liveness tag of an instance.
func (r *Region) SetState(index int, state InstanceState) bool {
	inst, ok := r.Instance(index)
	if !ok {
		return false
	}
	inst.State = state
	return true
}

// Teleport moves an instance without animating the transition.
func (r *Region) Teleport(index int, pos Position) bool {
	inst, ok := r.Instance(index)
	if !ok {
		return false
	}
	inst.Position = &pos
	inst.OldPosition = nil
	return true
}

// Get reads from the instance values map.
func (r *Region) Get(index int, key string) (float64, bool) {
	inst, ok := r.Instance(index)
	if !ok {
		return 0, false
	}
	return inst.Values.Get(key)
}

// Set inserts or updates a variable in the instance values map. It fails
// only when the instance does not exist.
func (r *Region) Set(index int, key string, value float64) bool {
	inst, ok := r.Instance(index)
	if !ok {
		return false
	}
	if inst.Values == nil {
		inst.Values = behavior.NewScope()
	}
	inst.Values.Set(key, value)
	return true
}

var _ behavior.VariableStore = (*Region)(nil)
