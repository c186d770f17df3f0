package sim

import (
	"sync"

	"tilesuite/server/internal/telemetry"
)

// CommandBuffer is a bounded FIFO ring of staged commands. Editors push from
// their websocket goroutines; the loop drains once per tick.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []Command
	head    int
	size    int
	peak    int
	metrics telemetry.Metrics
}

// NewCommandBuffer constructs a ring holding at most capacity commands.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{
		ring:    make([]Command, max(capacity, 1)),
		metrics: metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.ring)
}

// Push stages cmd. It reports false, and counts an overflow, when the ring
// is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.ring) {
		b.metrics.Add(telemetry.MetricCommandOverflow, 1)
		return false
	}
	b.ring[(b.head+b.size)%len(b.ring)] = cmd
	b.size++
	if b.size > b.peak {
		b.peak = b.size
		b.metrics.Store(telemetry.MetricCommandQueuePeak, uint64(b.peak))
	}
	b.metrics.Store(telemetry.MetricCommandQueueDepth, uint64(b.size))
	return true
}

// Drain removes every staged command in arrival order. It returns nil when
// nothing is staged.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	out := make([]Command, b.size)
	for i := range out {
		slot := (b.head + i) % len(b.ring)
		out[i] = b.ring[slot]
		b.ring[slot] = Command{}
	}
	b.head = (b.head + b.size) % len(b.ring)
	b.size = 0
	b.metrics.Store(telemetry.MetricCommandQueueDepth, 0)
	return out
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Peak reports the highest depth seen since construction.
func (b *CommandBuffer) Peak() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}
