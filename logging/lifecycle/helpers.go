package lifecycle

import (
	"context"

	"tilesuite/server/logging"
)

const (
	// EventInstanceSpawned is emitted when an instance joins a region.
	EventInstanceSpawned logging.EventType = "lifecycle.instance_spawned"
	// EventInstanceStateChanged is emitted when an instance's liveness tag changes.
	EventInstanceStateChanged logging.EventType = "lifecycle.instance_state_changed"
	// EventSnapshotWritten is emitted after a region snapshot is persisted.
	EventSnapshotWritten logging.EventType = "lifecycle.snapshot_written"
	// EventServerStarted is emitted once the server accepts connections.
	EventServerStarted logging.EventType = "lifecycle.server_started"
	// EventServerStopped is emitted during shutdown.
	EventServerStopped logging.EventType = "lifecycle.server_stopped"
)

// InstanceSpawnedPayload captures spawn metadata.
type InstanceSpawnedPayload struct {
	Name     string `json:"name"`
	Behavior int64  `json:"behavior"`
	Position string `json:"position,omitempty"`
}

// InstanceSpawned publishes a spawn event.
func InstanceSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload InstanceSpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventInstanceSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// InstanceStateChangedPayload captures the transition.
type InstanceStateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// InstanceStateChanged publishes a state change event.
func InstanceStateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload InstanceStateChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventInstanceStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SnapshotWrittenPayload describes the persisted snapshot.
type SnapshotWrittenPayload struct {
	Path      string `json:"path"`
	Instances int    `json:"instances"`
}

// SnapshotWritten publishes a snapshot event.
func SnapshotWritten(ctx context.Context, pub logging.Publisher, tick uint64, region string, payload SnapshotWrittenPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSnapshotWritten,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: region, Kind: logging.EntityKindRegion},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ServerStartedPayload describes the running server.
type ServerStartedPayload struct {
	Addr      string `json:"addr"`
	Region    string `json:"region"`
	TickRate  int    `json:"tickRate"`
	Instances int    `json:"instances"`
	Restored  bool   `json:"restored,omitempty"`
}

func ServerStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload ServerStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerStarted,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "server", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

type ServerStoppedPayload struct {
	Reason string `json:"reason,omitempty"`
}

func ServerStopped(ctx context.Context, pub logging.Publisher, tick uint64, payload ServerStoppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerStopped,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "server", Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
