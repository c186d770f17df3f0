package behavior

import (
	"context"

	"tilesuite/server/logging"
)

const (
	// EventExpressionFailed is emitted when a node expression cannot be parsed or evaluated.
	EventExpressionFailed logging.EventType = "behavior.expression_failed"
	// EventPathNotFound is emitted when a movement node finds no route.
	EventPathNotFound logging.EventType = "behavior.path_not_found"
	// EventVariableChanged is emitted for each committed script assignment.
	EventVariableChanged logging.EventType = "behavior.variable_changed"
)

// ExpressionFailedPayload identifies the failing expression.
type ExpressionFailedPayload struct {
	Graph      int64  `json:"graph"`
	Node       int64  `json:"node"`
	Expression string `json:"expression"`
	Error      string `json:"error"`
}

// ExpressionFailed publishes a debug event; the failure itself is swallowed by the caller.
func ExpressionFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExpressionFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventExpressionFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PathNotFoundPayload captures the attempted move.
type PathNotFoundPayload struct {
	Graph     int64  `json:"graph"`
	Node      int64  `json:"node"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	ExcludeDP bool   `json:"excludeDestination"`
}

// PathNotFound publishes a debug event for a failed walk.
func PathNotFound(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathNotFoundPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPathNotFound,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// VariableChangedPayload mirrors a ChangedVariable record.
type VariableChangedPayload struct {
	Graph    int64   `json:"graph"`
	Node     int64   `json:"node"`
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
}

// VariableChanged publishes an info event for a committed assignment.
func VariableChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload VariableChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventVariableChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
