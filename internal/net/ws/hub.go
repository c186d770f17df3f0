package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"tilesuite/server/internal/telemetry"
)

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex

	lastCommandSeq atomic.Uint64
}

// WriteMessage serialises writes; gorilla connections allow one writer.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

func (s *subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastCommandSeq.Store(seq)
}

// Hub tracks editor subscribers and fans tick updates out to them.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	nextID      atomic.Uint64

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger telemetry.Logger, metrics telemetry.Metrics) *Hub {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		metrics:     metrics,
	}
}

// Subscribe registers conn under id, replacing any existing connection with
// the same id. An empty id is assigned.
func (h *Hub) Subscribe(id string, conn *websocket.Conn) (string, *subscriber) {
	if id == "" {
		id = fmt.Sprintf("editor-%d", h.nextID.Add(1))
	}
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	existing := h.subscribers[id]
	h.subscribers[id] = sub
	h.metrics.Store(telemetry.MetricSubscribers, uint64(len(h.subscribers)))
	h.mu.Unlock()

	if existing != nil {
		existing.conn.Close()
	}
	return id, sub
}

// Unsubscribe removes id if it is still bound to sub and closes the
// connection.
func (h *Hub) Unsubscribe(id string, sub *subscriber) {
	h.mu.Lock()
	current, ok := h.subscribers[id]
	if ok && current == sub {
		delete(h.subscribers, id)
	}
	h.metrics.Store(telemetry.MetricSubscribers, uint64(len(h.subscribers)))
	h.mu.Unlock()

	if sub != nil {
		sub.conn.Close()
	}
}

// Count reports the connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast encodes msg once and writes it to every subscriber. Subscribers
// whose write fails are dropped.
func (h *Hub) Broadcast(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ws: encode broadcast: %w", err)
	}

	h.mu.Lock()
	targets := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		targets[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range targets {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("dropping subscriber %s: %v", id, err)
			h.Unsubscribe(id, sub)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*subscriber)
	h.metrics.Store(telemetry.MetricSubscribers, 0)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
		sub.conn.Close()
	}
}
