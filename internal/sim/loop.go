package sim

import (
	"context"
	"sync"
	"time"

	"tilesuite/server/internal/telemetry"
	"tilesuite/server/logging"
	loggingSimulation "tilesuite/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// LoopHooks are optional callbacks around each tick.
type LoopHooks struct {
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// LoopStepResult describes a completed tick.
type LoopStepResult struct {
	StepResult
	Now      time.Time
	Duration time.Duration
	Budget   time.Duration
	Commands []Command
}

// Loop owns the command queue and drives the engine at a fixed rate. Enqueue
// may be called from any goroutine; Advance and Run belong to one goroutine.
type Loop struct {
	engine  *Engine
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu       sync.Mutex
	throttle actorThrottle

	overrunStreak uint64
}

// actorThrottle counts staged commands per actor within the current tick and
// total rejections per actor over the loop's lifetime.
type actorThrottle struct {
	limit    int
	inflight map[string]int
	rejected map[string]uint64
}

func (t *actorThrottle) admit(actor string) bool {
	if t.limit <= 0 || actor == "" {
		return true
	}
	if t.inflight[actor] >= t.limit {
		return false
	}
	t.inflight[actor]++
	return true
}

// release undoes an admit whose command never reached the buffer.
func (t *actorThrottle) release(actor string) {
	if n := t.inflight[actor]; n > 0 {
		t.inflight[actor] = n - 1
	}
}

func (t *actorThrottle) reject(actor string) uint64 {
	if actor == "" {
		return 0
	}
	t.rejected[actor]++
	return t.rejected[actor]
}

func (t *actorThrottle) reset() {
	clear(t.inflight)
}

// NewLoop wraps engine. A non-positive capacity falls back to 256 slots.
func NewLoop(engine *Engine, cfg LoopConfig, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 256
	}
	deps := engine.Deps()
	return &Loop{
		engine:  engine,
		buffer:  NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:   hooks,
		config:  cfg,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		throttle: actorThrottle{
			limit:    cfg.PerActorLimit,
			inflight: make(map[string]int),
			rejected: make(map[string]uint64),
		},
	}
}

// Engine returns the wrapped engine.
func (l *Loop) Engine() *Engine {
	if l == nil {
		return nil
	}
	return l.engine
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages cmd for the next tick. A rejected command reports
// CommandRejectQueueLimit when its actor already has PerActorLimit commands
// staged, or CommandRejectQueueFull when the buffer has no room.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	l.mu.Lock()
	reason := ""
	switch {
	case !l.throttle.admit(cmd.ActorID):
		reason = CommandRejectQueueLimit
	case !l.buffer.Push(cmd):
		l.throttle.release(cmd.ActorID)
		reason = CommandRejectQueueFull
	}
	var rejected uint64
	if reason != "" {
		rejected = l.throttle.reject(cmd.ActorID)
	}
	length := l.buffer.Len()
	l.mu.Unlock()

	if reason != "" {
		l.reportDrop(reason, cmd, rejected)
		return false, reason
	}
	if step := l.config.WarningStep; step > 0 && length%step == 0 && l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx context.Context, now time.Time) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	clock := l.engine.Deps().Clock
	start := clock.Now()
	step := l.engine.Step(ctx, commands)
	return LoopStepResult{
		StepResult: step,
		Now:        now,
		Duration:   clock.Now().Sub(start),
		Commands:   commands,
	}
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 15
	}
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.engine.Deps().Clock
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result := l.Advance(ctx, clock.Now())
			result.Budget = budget
			l.checkBudget(ctx, result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) checkBudget(ctx context.Context, result LoopStepResult) {
	l.metrics.Store(telemetry.MetricTickDurationMs, uint64(result.Duration.Milliseconds()))
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	l.metrics.Add(telemetry.MetricTickBudgetOverrun, 1)
	loggingSimulation.TickBudgetOverrun(ctx, l.engine.Deps().Publisher, result.Tick, loggingSimulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
	}, nil)
}

func (l *Loop) drainCommands() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.throttle.reset()
	return l.buffer.Drain()
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	l.metrics.Add(telemetry.MetricCommandsDropped, 1)
	loggingSimulation.CommandRejected(context.Background(), l.engine.Deps().Publisher, l.engine.Tick(), logging.EntityRef{ID: cmd.ActorID, Kind: logging.EntityKindEditor}, loggingSimulation.CommandRejectedPayload{
		Command: string(cmd.Type),
		Stage:   loggingSimulation.StageQueue,
		Reason:  reason,
	}, nil)
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two so a flooding client cannot flood the log.
	if count > 0 && count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			count,
			l.config.PerActorLimit,
		)
	}
}
