package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"tilesuite/server/logging"
)

// ConsoleSink writes one human-readable line per event:
//
//	15:04:05.000 INFO  lifecycle.server_started tick=0 actor=world:server {"addr":":8080"}
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	var b strings.Builder
	b.WriteString(event.Time.Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s %s tick=%d", strings.ToUpper(event.Severity.String()), event.Type, event.Tick)
	if actor := entityLabel(event.Actor); actor != "" {
		b.WriteString(" actor=")
		b.WriteString(actor)
	}
	if len(event.Targets) > 0 {
		labels := make([]string, len(event.Targets))
		for i, target := range event.Targets {
			labels[i] = entityLabel(target)
		}
		b.WriteString(" targets=")
		b.WriteString(strings.Join(labels, ","))
	}
	if event.Payload != nil {
		b.WriteByte(' ')
		if data, err := json.Marshal(event.Payload); err == nil {
			b.Write(data)
		} else {
			fmt.Fprintf(&b, "%v", event.Payload)
		}
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func entityLabel(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}

