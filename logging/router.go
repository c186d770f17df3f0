package logging

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Router fans published events out to sinks. Publish never blocks the
// simulation: a full queue drops the event and counts it. One dispatcher
// goroutine applies severity floors and shared fields, then each sink drains
// its own backlog.
type Router struct {
	cfg      Config
	queue    chan Event
	workers  []*sinkWorker
	clock    Clock
	fallback *log.Logger
	fields   map[string]any

	stop      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup

	forwarded   atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64      `json:"eventsTotal"`
	DroppedTotal uint64      `json:"droppedTotal"`
	Sinks        []SinkStats `json:"sinks,omitempty"`
}

// NewRouter starts a router writing to the named sinks, in name order.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks map[string]Sink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 512
	}
	if cfg.DropWarnInterval <= 0 {
		cfg.DropWarnInterval = 5 * time.Second
	}
	cfg.CategorySeverity = cloneMap(cfg.CategorySeverity)

	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, cfg.BufferSize),
		clock:    clock,
		fallback: fallback,
		fields:   cloneMap(cfg.Fields),
		stop:     make(chan struct{}),
	}

	backlog := min(max(cfg.BufferSize, 32), 1024)
	names := make([]string, 0, len(sinks))
	for name, sink := range sinks {
		if sink != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		r.workers = append(r.workers, newSinkWorker(name, sinks[name], backlog, fallback))
	}

	for _, w := range r.workers {
		r.wg.Add(1)
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	r.wg.Add(1)
	go r.dispatch()
	return r, nil
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.floor(event.Category) {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.forwarded.Add(1)
	for _, w := range r.workers {
		w.enqueue(event)
	}
}

// Publish queues event for the sinks. Events without a type and events
// published after Close are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

// warnDrop logs at most once per DropWarnInterval.
func (r *Router) warnDrop(event Event) {
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now < next {
		return
	}
	if r.nextDropLog.CompareAndSwap(next, now+r.cfg.DropWarnInterval.Nanoseconds()) {
		r.fallback.Printf("queue full, dropping event type=%s tick=%d (dropped=%d)", event.Type, event.Tick, r.dropped.Load())
	}
}

// Close stops accepting events, flushes what is queued through the sinks and
// closes them.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.closeOnce.Do(func() { close(r.stop) })

	flushed := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.forwarded.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	for _, w := range r.workers {
		stats.Sinks = append(stats.Sinks, w.stats())
	}
	return stats
}

// Sink returns the sink registered under name.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}
