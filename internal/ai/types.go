package ai

import (
	"tilesuite/server/internal/script"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
)

// maxNodeVisitsPerTick bounds how many nodes a single instance may execute
// per decision, so cyclic graphs cannot stall the tick.
const maxNodeVisitsPerTick = 64

// RunConfig captures the runtime dependencies required to execute behaviors.
type RunConfig struct {
	Tick      uint64
	Region    *world.Region
	Script    *script.Evaluator
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// Result summarises one Run.
type Result struct {
	Decisions    int
	NodeVisits   int
	Moves        int
	PathFailures int
	Commits      int
	// Truncated counts decisions stopped by the visit cap.
	Truncated int
}

func (r *Result) add(other Result) {
	r.Decisions += other.Decisions
	r.NodeVisits += other.NodeVisits
	r.Moves += other.Moves
	r.PathFailures += other.PathFailures
	r.Commits += other.Commits
	r.Truncated += other.Truncated
}
