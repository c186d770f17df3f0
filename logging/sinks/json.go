package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"tilesuite/server/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
	closer    io.Closer
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJSON constructs a JSON sink writing to w. A non-positive flush interval
// flushes after every event. If w is an io.Closer it is closed with the sink.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:    buf,
		encoder:   json.NewEncoder(buf),
		autoFlush: flushInterval <= 0,
		stop:      make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		sink.closer = c
	}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// record is the wire form of one event.
type record struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     logging.EntityRef   `json:"actor"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	rec := record{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Actor:     event.Actor,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(rec); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close flushes buffers and stops the periodic flusher.
func (s *JSON) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
