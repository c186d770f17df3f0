package simulation

import (
	"context"

	"tilesuite/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a tick runs past its time budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandRejected is emitted when an editor command is turned away,
	// either at the queue or when applied.
	EventCommandRejected logging.EventType = "simulation.command_rejected"
)

// Rejection stages.
const (
	StageQueue = "queue"
	StageApply = "apply"
)

type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	emit(ctx, pub, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "loop", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandRejectedPayload names the command, where it was stopped and why.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	emit(ctx, pub, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
		Extra:    extra,
	})
}

func emit(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = "simulation"
	pub.Publish(ctx, event)
}
