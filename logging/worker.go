package logging

import (
	"log"
	"sync/atomic"
	"time"
)

const maxSinkBackoff = 32 * time.Second

// SinkStats counts what one sink did with the events routed to it.
type SinkStats struct {
	Name    string `json:"name"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	// streak and retryAt are owned by run.
	streak  int
	retryAt time.Time

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func newSinkWorker(name string, sink Sink, backlog int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, backlog),
		fallback: fallback,
	}
}

// enqueue hands the event to the worker, dropping it when the backlog is
// full so a slow sink cannot stall the others.
func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- event:
	default:
		if w.dropped.Add(1)&63 == 1 {
			w.fallback.Printf("sink %s backlog full, dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if wait := time.Until(w.retryAt); w.streak > 0 && wait > 0 {
			time.Sleep(wait)
		}
		if err := w.sink.Write(event); err != nil {
			w.failed.Add(1)
			w.streak++
			delay := backoff(w.streak)
			w.retryAt = time.Now().Add(delay)
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.written.Add(1)
		w.streak = 0
	}
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Name:    w.name,
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}

// backoff doubles from one second up to maxSinkBackoff.
func backoff(streak int) time.Duration {
	delay := time.Second << min(streak-1, 5)
	return min(delay, maxSinkBackoff)
}
