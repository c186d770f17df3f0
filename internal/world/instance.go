package world

import "tilesuite/server/internal/behavior"

// InstanceState is the liveness tag of an instance.
type InstanceState uint8

const (
	StateNormal InstanceState = iota
	StateSleeping
	StateKilled
	StatePurged
)

var instanceStateNames = [...]string{"normal", "sleeping", "killed", "purged"}

func (s InstanceState) String() string {
	if int(s) < len(instanceStateNames) {
		return instanceStateNames[s]
	}
	return "unknown"
}

// ParseInstanceState maps an authoring name to a state.
func ParseInstanceState(name string) (InstanceState, bool) {
	for i, candidate := range instanceStateNames {
		if candidate == name {
			return InstanceState(i), true
		}
	}
	return 0, false
}

// Instance is one live actor placed in a region.
type Instance struct {
	Index int
	Name  string
	// Behavior is the graph id driving this instance.
	Behavior int64
	State    InstanceState
	Position *Position
	// OldPosition is set while a one-step move is being animated.
	OldPosition *Position
	Values      *behavior.Scope

	// NextDecisionAt is the tick at which the driver next runs the graph.
	NextDecisionAt uint64
}

// Live reports whether the instance takes part in the simulation.
func (i *Instance) Live() bool {
	return i != nil && i.State == StateNormal
}

// Clone returns a deep copy.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	copied := *i
	copied.Position = clonePosition(i.Position)
	copied.OldPosition = clonePosition(i.OldPosition)
	copied.Values = i.Values.Clone()
	return &copied
}
