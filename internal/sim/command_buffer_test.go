package sim

import (
	"testing"

	"tilesuite/server/internal/telemetry"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a"},
		{ActorID: "b"},
		{ActorID: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil {
		t.Fatalf("expected empty drain to return nil")
	}
}

type countingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{added: map[string]uint64{}, stored: map[string]uint64{}}
}

func (m *countingMetrics) Add(key string, delta uint64)   { m.added[key] += delta }
func (m *countingMetrics) Store(key string, value uint64) { m.stored[key] = value }

func TestCommandBufferOverflowMetrics(t *testing.T) {
	metrics := newCountingMetrics()
	buffer := NewCommandBuffer(1, metrics)
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	if metrics.added[telemetry.MetricCommandOverflow] != 1 {
		t.Fatalf("expected overflow to be counted, got %v", metrics.added)
	}
	if metrics.stored[telemetry.MetricCommandQueueDepth] != 1 || metrics.stored[telemetry.MetricCommandQueuePeak] != 1 {
		t.Fatalf("expected depth and peak 1, got %v", metrics.stored)
	}
	buffer.Drain()
	if metrics.stored[telemetry.MetricCommandQueueDepth] != 0 {
		t.Fatalf("expected depth reset after drain")
	}
	if buffer.Peak() != 1 {
		t.Fatalf("expected peak to survive drain, got %d", buffer.Peak())
	}
}
