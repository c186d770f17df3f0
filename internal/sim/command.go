package sim

import (
	"time"

	"tilesuite/server/internal/world"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandSpawnInstance CommandType = "SpawnInstance"
	CommandSetState      CommandType = "SetState"
	CommandSetVariable   CommandType = "SetVariable"
	CommandTeleport      CommandType = "Teleport"
)

// SpawnCommand places a new instance running the given behavior graph.
type SpawnCommand struct {
	Name      string             `json:"name"`
	Behavior  int64              `json:"behavior"`
	Position  *world.Position    `json:"position,omitempty"`
	State     string             `json:"state,omitempty"`
	Variables map[string]float64 `json:"variables,omitempty"`
}

// StateCommand changes the liveness tag of an instance.
type StateCommand struct {
	Instance int    `json:"instance"`
	State    string `json:"state"`
}

// VariableCommand writes one instance variable.
type VariableCommand struct {
	Instance int     `json:"instance"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
}

// TeleportCommand moves an instance without a transition.
type TeleportCommand struct {
	Instance int            `json:"instance"`
	Position world.Position `json:"position"`
}

// Command represents an intent captured for processing on the next tick.
// ActorID names the issuing editor session and is used for throttling.
type Command struct {
	OriginTick uint64           `json:"originTick"`
	ActorID    string           `json:"actorId"`
	Type       CommandType      `json:"type"`
	IssuedAt   time.Time        `json:"issuedAt"`
	Spawn      *SpawnCommand    `json:"spawn,omitempty"`
	State      *StateCommand    `json:"state,omitempty"`
	Variable   *VariableCommand `json:"variable,omitempty"`
	Teleport   *TeleportCommand `json:"teleport,omitempty"`
}
