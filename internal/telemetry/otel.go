package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every server instrument.
const meterName = "tilesuite/server"

// Instrument keys recorded by the simulation and transport layers.
const (
	MetricTicks             = "tilesuite.sim.ticks"
	MetricTickDurationMs    = "tilesuite.sim.tick_duration_ms"
	MetricTickBudgetOverrun = "tilesuite.sim.tick_budget_overruns"
	MetricDecisions         = "tilesuite.ai.decisions"
	MetricNodeVisits        = "tilesuite.ai.node_visits"
	MetricPathNotFound      = "tilesuite.ai.path_not_found"
	MetricVariableChanges   = "tilesuite.ai.variable_changes"
	MetricCommandsApplied   = "tilesuite.sim.commands_applied"
	MetricCommandsDropped   = "tilesuite.sim.commands_dropped"
	MetricCommandQueueDepth = "tilesuite.sim.command_queue_depth"
	MetricCommandQueuePeak  = "tilesuite.sim.command_queue_peak"
	MetricCommandOverflow   = "tilesuite.sim.command_queue_overflow"
	MetricInstances         = "tilesuite.world.instances"
	MetricSubscribers       = "tilesuite.net.subscribers"
	MetricJournalRows       = "tilesuite.journal.rows"
)

// OTelMetrics records Metrics observations as OpenTelemetry instruments.
// Instruments are created lazily per key and cached.
type OTelMetrics struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Int64Gauge
}

// NewOTelMetrics binds a Metrics implementation to mp.
func NewOTelMetrics(mp metric.MeterProvider) *OTelMetrics {
	return &OTelMetrics{
		meter:    mp.Meter(meterName),
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Int64Gauge),
	}
}

func (m *OTelMetrics) Add(key string, delta uint64) {
	if m == nil {
		return
	}
	counter, ok := m.counter(key)
	if !ok {
		return
	}
	counter.Add(context.Background(), int64(delta))
}

func (m *OTelMetrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	gauge, ok := m.gauge(key)
	if !ok {
		return
	}
	gauge.Record(context.Background(), int64(value))
}

func (m *OTelMetrics) counter(key string) (metric.Int64Counter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[key]; ok {
		return c, true
	}
	c, err := m.meter.Int64Counter(key)
	if err != nil {
		return nil, false
	}
	m.counters[key] = c
	return c, true
}

func (m *OTelMetrics) gauge(key string) (metric.Int64Gauge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[key]; ok {
		return g, true
	}
	g, err := m.meter.Int64Gauge(key)
	if err != nil {
		return nil, false
	}
	m.gauges[key] = g
	return g, true
}

var _ Metrics = (*OTelMetrics)(nil)
