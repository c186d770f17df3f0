package sim

import (
	"tilesuite/server/internal/script"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Script    *script.Evaluator
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(nil)
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Script == nil {
		d.Script = script.New(script.Config{Publisher: d.Publisher})
	}
	return d
}
