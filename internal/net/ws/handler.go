package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"tilesuite/server/internal/sim"
	"tilesuite/server/internal/telemetry"
)

// CommandSink stages commands for the next tick.
type CommandSink interface {
	Enqueue(cmd sim.Command) (bool, string)
}

// StateSource provides the view sent to a new subscriber.
type StateSource interface {
	Snapshot() sim.Snapshot
}

type HandlerConfig struct {
	Logger telemetry.Logger
	Now    func() time.Time
}

// Handler serves editor websocket sessions.
type Handler struct {
	hub      *Hub
	commands CommandSink
	state    StateSource
	logger   telemetry.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket session handler.
func NewHandler(hub *Hub, commands CommandSink, state StateSource, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		hub:      hub,
		commands: commands,
		state:    state,
		logger:   logger,
		now:      now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and runs the session until the peer leaves.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}
	h.Serve(r.URL.Query().Get("id"), conn)
}

// Serve runs a session on an established connection.
func (h *Handler) Serve(requestedID string, conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}
	editorID, sub := h.hub.Subscribe(requestedID, conn)
	defer h.hub.Unsubscribe(editorID, sub)

	writeJSON := func(payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Printf("failed to marshal response for %s: %v", editorID, err)
			return true
		}
		return sub.WriteMessage(websocket.TextMessage, data) == nil
	}

	initial := StateMessage{
		Ver:        ProtocolVersion,
		Type:       typeState,
		ID:         editorID,
		ServerTime: h.now().UnixMilli(),
	}
	if h.state != nil {
		initial.Snapshot = h.state.Snapshot()
	}
	if !writeJSON(initial) {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", editorID, err)
			continue
		}

		normalizedSeq := uint64(0)
		if msg.CommandSeq != nil && *msg.CommandSeq > 0 {
			normalizedSeq = *msg.CommandSeq
		}

		switch msg.Type {
		case typeCommand:
			if msg.Command == nil {
				continue
			}
			if normalizedSeq > 0 {
				if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
					if !writeJSON(commandAckMessage{Ver: ProtocolVersion, Type: typeCommandAck, Seq: normalizedSeq}) {
						return
					}
					continue
				}
			}
			cmd := *msg.Command
			cmd.ActorID = editorID
			cmd.IssuedAt = h.now()
			ok, reason := h.enqueue(cmd)
			if normalizedSeq == 0 {
				continue
			}
			if ok {
				if !writeJSON(commandAckMessage{Ver: ProtocolVersion, Type: typeCommandAck, Seq: normalizedSeq, Tick: cmd.OriginTick}) {
					return
				}
				sub.StoreLastCommandSeq(normalizedSeq)
				continue
			}
			reject := commandRejectMessage{Ver: ProtocolVersion, Type: typeCommandReject, Seq: normalizedSeq, Reason: reason}
			if reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull {
				reject.Retry = true
			}
			if !writeJSON(reject) {
				return
			}
		case typeHeartbeat:
			ack := heartbeatMessage{
				Ver:        ProtocolVersion,
				Type:       typeHeartbeat,
				ServerTime: h.now().UnixMilli(),
				ClientTime: msg.SentAt,
			}
			if !writeJSON(ack) {
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, editorID)
		}
	}
}

func (h *Handler) enqueue(cmd sim.Command) (bool, string) {
	if h.commands == nil {
		return false, sim.CommandRejectQueueFull
	}
	return h.commands.Enqueue(cmd)
}
