package sim

import (
	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/world"
)

// InstanceView mirrors one instance for callers outside the simulation.
type InstanceView struct {
	Index       int                        `json:"index"`
	Name        string                     `json:"name"`
	Behavior    int64                      `json:"behavior"`
	State       string                     `json:"state"`
	Position    *world.Position            `json:"position,omitempty"`
	OldPosition *world.Position            `json:"oldPosition,omitempty"`
	Variables   map[string]behavior.Number `json:"variables,omitempty"`
}

// Snapshot captures the state exposed to non-simulation callers.
type Snapshot struct {
	Region    string         `json:"region"`
	Tick      uint64         `json:"tick"`
	Instances []InstanceView `json:"instances"`
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{Region: e.region.ID, Tick: e.tick}
	instances := e.region.Instances()
	snap.Instances = make([]InstanceView, 0, len(instances))
	for _, inst := range instances {
		if inst.State == world.StatePurged {
			continue
		}
		view := InstanceView{
			Index:    inst.Index,
			Name:     inst.Name,
			Behavior: inst.Behavior,
			State:    inst.State.String(),
		}
		if inst.Position != nil {
			p := *inst.Position
			view.Position = &p
		}
		if inst.OldPosition != nil {
			p := *inst.OldPosition
			view.OldPosition = &p
		}
		if inst.Values != nil && inst.Values.Len() > 0 {
			view.Variables = make(map[string]behavior.Number, inst.Values.Len())
			for _, key := range inst.Values.Keys() {
				v, _ := inst.Values.Get(key)
				view.Variables[key] = behavior.Number(v)
			}
		}
		snap.Instances = append(snap.Instances, view)
	}
	return snap
}
