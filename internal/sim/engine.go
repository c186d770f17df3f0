package sim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"tilesuite/server/internal/ai"
	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
	loggingLifecycle "tilesuite/server/logging/lifecycle"
	loggingSimulation "tilesuite/server/logging/simulation"
)

var (
	// ErrMissingRegion indicates NewEngine was invoked without a region.
	ErrMissingRegion = errors.New("sim: region is nil")
	// ErrUnknownInstance indicates a command addressed an instance that does not exist.
	ErrUnknownInstance = errors.New("sim: unknown instance")
	// ErrInvalidCommand indicates a command without the payload its type requires.
	ErrInvalidCommand = errors.New("sim: invalid command")
)

// Engine owns a region exclusively. Every mutation, including commands, runs
// under the engine lock, so nothing interleaves with a tick.
type Engine struct {
	mu     sync.Mutex
	region *world.Region
	deps   Deps
	tick   uint64
}

// NewEngine wraps region with the provided dependencies.
func NewEngine(region *world.Region, deps Deps) (*Engine, error) {
	if region == nil {
		return nil, ErrMissingRegion
	}
	return &Engine{region: region, deps: deps.withDefaults()}, nil
}

// Deps returns the injected dependencies.
func (e *Engine) Deps() Deps {
	if e == nil {
		return Deps{}
	}
	return e.deps
}

// Tick reports the last completed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetTick seeds the tick counter, e.g. after restoring a snapshot.
func (e *Engine) SetTick(tick uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = tick
}

// StepResult reports what one tick did.
type StepResult struct {
	Tick     uint64
	Applied  int
	Rejected int
	AI       ai.Result
	Changes  []behavior.ChangedVariable
	Snapshot Snapshot
}

// Step applies staged commands, then runs every behavior once and drains the
// change log. Commands never interleave with behavior execution.
func (e *Engine) Step(ctx context.Context, cmds []Command) StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tick++
	result := StepResult{Tick: e.tick}
	for _, cmd := range cmds {
		if err := e.applyLocked(ctx, cmd); err != nil {
			result.Rejected++
			loggingSimulation.CommandRejected(ctx, e.deps.Publisher, e.tick, logging.EntityRef{ID: cmd.ActorID, Kind: logging.EntityKindEditor}, loggingSimulation.CommandRejectedPayload{
				Command: string(cmd.Type),
				Stage:   loggingSimulation.StageApply,
				Reason:  err.Error(),
			}, nil)
			continue
		}
		result.Applied++
	}

	result.AI = ai.Run(ctx, ai.RunConfig{
		Tick:      e.tick,
		Region:    e.region,
		Script:    e.deps.Script,
		Publisher: e.deps.Publisher,
		Metrics:   e.deps.Metrics,
	})
	result.Changes = e.region.Changes.Drain()
	result.Snapshot = e.snapshotLocked()

	e.deps.Metrics.Add(telemetry.MetricTicks, 1)
	e.deps.Metrics.Add(telemetry.MetricCommandsApplied, uint64(result.Applied))
	e.deps.Metrics.Add(telemetry.MetricCommandsDropped, uint64(result.Rejected))
	e.deps.Metrics.Store(telemetry.MetricInstances, uint64(e.region.Len()))
	return result
}

// Apply runs commands immediately without advancing the tick.
func (e *Engine) Apply(ctx context.Context, cmds []Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, cmd := range cmds {
		if err := e.applyLocked(ctx, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// View runs fn with exclusive access to the region.
func (e *Engine) View(fn func(tick uint64, region *world.Region)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.tick, e.region)
}

// Snapshot captures the state exposed to non-simulation callers.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) applyLocked(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CommandSpawnInstance:
		if cmd.Spawn == nil {
			return fmt.Errorf("%w: %s without payload", ErrInvalidCommand, cmd.Type)
		}
		state := world.StateNormal
		if cmd.Spawn.State != "" {
			parsed, ok := world.ParseInstanceState(cmd.Spawn.State)
			if !ok {
				return fmt.Errorf("%w: state %q", ErrInvalidCommand, cmd.Spawn.State)
			}
			state = parsed
		}
		inst := e.region.Spawn(world.SpawnConfig{
			Name:      cmd.Spawn.Name,
			Behavior:  cmd.Spawn.Behavior,
			Position:  cmd.Spawn.Position,
			State:     state,
			Variables: cmd.Spawn.Variables,
		})
		payload := loggingLifecycle.InstanceSpawnedPayload{Name: inst.Name, Behavior: inst.Behavior}
		if inst.Position != nil {
			payload.Position = inst.Position.String()
		}
		loggingLifecycle.InstanceSpawned(ctx, e.deps.Publisher, e.tick, instanceRef(inst.Index), payload, nil)
		return nil
	case CommandSetState:
		if cmd.State == nil {
			return fmt.Errorf("%w: %s without payload", ErrInvalidCommand, cmd.Type)
		}
		state, ok := world.ParseInstanceState(cmd.State.State)
		if !ok {
			return fmt.Errorf("%w: state %q", ErrInvalidCommand, cmd.State.State)
		}
		inst, ok := e.region.Instance(cmd.State.Instance)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownInstance, cmd.State.Instance)
		}
		previous := inst.State
		e.region.SetState(inst.Index, state)
		if state == world.StatePurged {
			e.region.Variables.Forget(inst.Index)
		}
		loggingLifecycle.InstanceStateChanged(ctx, e.deps.Publisher, e.tick, instanceRef(inst.Index), loggingLifecycle.InstanceStateChangedPayload{
			From: previous.String(),
			To:   state.String(),
		}, nil)
		return nil
	case CommandSetVariable:
		if cmd.Variable == nil || cmd.Variable.Name == "" {
			return fmt.Errorf("%w: %s without payload", ErrInvalidCommand, cmd.Type)
		}
		if !e.region.Set(cmd.Variable.Instance, cmd.Variable.Name, cmd.Variable.Value) {
			return fmt.Errorf("%w: %d", ErrUnknownInstance, cmd.Variable.Instance)
		}
		e.region.Variables.Set(cmd.Variable.Instance, cmd.Variable.Name, cmd.Variable.Value)
		return nil
	case CommandTeleport:
		if cmd.Teleport == nil {
			return fmt.Errorf("%w: %s without payload", ErrInvalidCommand, cmd.Type)
		}
		if !e.region.Teleport(cmd.Teleport.Instance, cmd.Teleport.Position) {
			return fmt.Errorf("%w: %d", ErrUnknownInstance, cmd.Teleport.Instance)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, cmd.Type)
	}
}

func instanceRef(index int) logging.EntityRef {
	return logging.InstanceRef(strconv.Itoa(index))
}
