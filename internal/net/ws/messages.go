package ws

import (
	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/sim"
)

// ProtocolVersion tags every outbound envelope.
const ProtocolVersion = 1

const (
	typeState         = "state"
	typeUpdate        = "update"
	typeCommand       = "command"
	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHeartbeat     = "heartbeat"
)

type clientMessage struct {
	Ver        int          `json:"ver,omitempty"`
	Type       string       `json:"type"`
	SentAt     int64        `json:"sentAt"`
	Command    *sim.Command `json:"command,omitempty"`
	CommandSeq *uint64      `json:"seq,omitempty"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"tick,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// StateMessage is the full view sent when an editor subscribes.
type StateMessage struct {
	Ver        int          `json:"ver"`
	Type       string       `json:"type"`
	ID         string       `json:"id"`
	ServerTime int64        `json:"serverTime"`
	Snapshot   sim.Snapshot `json:"snapshot"`
}

// UpdateMessage is broadcast after every tick.
type UpdateMessage struct {
	Ver        int                        `json:"ver"`
	Type       string                     `json:"type"`
	Tick       uint64                     `json:"tick"`
	ServerTime int64                      `json:"serverTime"`
	Instances  []sim.InstanceView         `json:"instances"`
	Changes    []behavior.ChangedVariable `json:"changes,omitempty"`
}

// NewUpdate builds the update envelope for a finished tick.
func NewUpdate(result sim.LoopStepResult) UpdateMessage {
	return UpdateMessage{
		Ver:        ProtocolVersion,
		Type:       typeUpdate,
		Tick:       result.Tick,
		ServerTime: result.Now.UnixMilli(),
		Instances:  result.Snapshot.Instances,
		Changes:    result.Changes,
	}
}
