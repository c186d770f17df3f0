package app

import (
	"context"

	"tilesuite/server/internal/sim"
	"tilesuite/server/internal/snapshot"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
	loggingLifecycle "tilesuite/server/logging/lifecycle"
)

// snapshotWriter persists the region every `every` ticks. It runs on the loop
// goroutine, so writes never overlap.
type snapshotWriter struct {
	path      string
	every     uint64
	engine    *sim.Engine
	publisher logging.Publisher
	logger    telemetry.Logger
}

func (w *snapshotWriter) maybeWrite(ctx context.Context, tick uint64) {
	if w.every == 0 || tick == 0 || tick%w.every != 0 {
		return
	}
	w.write(ctx)
}

func (w *snapshotWriter) write(ctx context.Context) {
	if w.path == "" {
		return
	}
	var snap snapshot.SnapshotV1
	w.engine.View(func(tick uint64, region *world.Region) {
		snap = snapshot.Capture(tick, region)
	})
	if err := snapshot.Write(w.path, snap); err != nil {
		w.logger.Printf("failed to write snapshot: %v", err)
		return
	}
	loggingLifecycle.SnapshotWritten(ctx, w.publisher, snap.Header.Tick, snap.Header.Region, loggingLifecycle.SnapshotWrittenPayload{
		Path:      w.path,
		Instances: len(snap.Instances),
	}, nil)
}
