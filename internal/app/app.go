package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"tilesuite/server/internal/config"
	"tilesuite/server/internal/content"
	"tilesuite/server/internal/journal"
	servernet "tilesuite/server/internal/net"
	"tilesuite/server/internal/net/ws"
	"tilesuite/server/internal/observability"
	"tilesuite/server/internal/script"
	"tilesuite/server/internal/sim"
	"tilesuite/server/internal/snapshot"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/internal/world"
	"tilesuite/server/logging"
	loggingLifecycle "tilesuite/server/logging/lifecycle"
	loggingSinks "tilesuite/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger   telemetry.Logger
	Settings config.Config
}

func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return err
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	logConfig := settings.LoggingConfig()
	sinks, err := buildSinks(logConfig)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	observabilityCfg := settings.ObservabilityConfig()
	metrics := telemetry.NopMetrics()
	var provider *observability.Provider
	if observabilityCfg.Metrics {
		provider, err = observability.InitProvider(ctx, observabilityCfg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := provider.Shutdown(closeCtx); cerr != nil {
				telemetryLogger.Printf("failed to shut down meter provider: %v", cerr)
			}
		}()
		metrics = telemetry.NewOTelMetrics(provider.MeterProvider)
	}

	region, err := loadRegion(settings.Content)
	if err != nil {
		return err
	}
	tick, restored, err := restoreRegion(settings.Snapshot.Path, region)
	if err != nil {
		return err
	}
	if restored {
		telemetryLogger.Printf("restored region %s at tick %d from %s", region.ID, tick, settings.Snapshot.Path)
	}

	var changeJournal *journal.Journal
	if settings.JournalPath != "" {
		changeJournal, err = journal.Open(settings.JournalPath, journal.Options{Metrics: metrics, Logger: telemetry.Named(telemetryLogger, "journal")})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := changeJournal.Close(); cerr != nil {
				telemetryLogger.Printf("failed to close journal: %v", cerr)
			}
		}()
	}

	seed := settings.Seed
	if seed == "" {
		seed = region.Seed
	}
	evaluator := script.New(script.Config{
		Dice:      world.NewSeededDice(seed, scriptDiceLabel(tick)),
		Publisher: router,
	})
	engine, err := sim.NewEngine(region, sim.Deps{
		Logger:    telemetry.Named(telemetryLogger, "sim"),
		Metrics:   metrics,
		Publisher: router,
		Script:    evaluator,
	})
	if err != nil {
		return err
	}
	engine.SetTick(tick)

	hub := ws.NewHub(telemetry.Named(telemetryLogger, "hub"), metrics)
	snapshots := &snapshotWriter{
		path:      settings.Snapshot.Path,
		every:     uint64(settings.Snapshot.EveryTicks),
		engine:    engine,
		publisher: router,
		logger:    telemetryLogger,
	}

	loop := sim.NewLoop(engine, sim.LoopConfig{
		TickRate:        settings.TickRate,
		CommandCapacity: settings.Commands.Capacity,
		PerActorLimit:   settings.Commands.PerActorLimit,
		WarningStep:     settings.Commands.WarningStep,
	}, sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			if changeJournal != nil && len(result.Changes) > 0 {
				changeJournal.Record(result.Tick, region.ID, result.Changes)
			}
			if err := hub.Broadcast(ws.NewUpdate(result)); err != nil {
				telemetryLogger.Printf("broadcast failed: %v", err)
			}
			snapshots.maybeWrite(ctx, result.Tick)
		},
		OnQueueWarning: func(length int) {
			telemetryLogger.Printf("[backpressure] command queue length=%d", length)
		},
	})

	wsHandler := ws.NewHandler(hub, loop, engine, ws.HandlerConfig{Logger: telemetry.Named(telemetryLogger, "ws")})
	handlerCfg := servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		State:         engine,
		Logging:       router,
		WebSocket:     wsHandler.Handle,
		Subscribers:   hub.Count,
		Pending:       loop.Pending,
		TickRate:      settings.TickRate,
		Observability: observabilityCfg,
	}
	if changeJournal != nil {
		handlerCfg.Journal = changeJournal
	}
	if provider != nil {
		handlerCfg.Gatherer = provider.Registry
	}

	srv := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           servernet.NewHTTPHandler(handlerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loggingLifecycle.ServerStarted(ctx, router, tick, loggingLifecycle.ServerStartedPayload{
		Addr:      srv.Addr,
		Region:    region.ID,
		TickRate:  settings.TickRate,
		Instances: region.Len(),
		Restored:  restored,
	}, nil)
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	finalTick := engine.Tick()
	snapshots.write(stopCtx)
	if changeJournal != nil {
		if err := changeJournal.Flush(stopCtx); err != nil {
			telemetryLogger.Printf("failed to flush journal: %v", err)
		}
	}
	reason := "context cancelled"
	if runErr != nil {
		reason = runErr.Error()
	}
	loggingLifecycle.ServerStopped(stopCtx, router, finalTick, loggingLifecycle.ServerStoppedPayload{Reason: reason}, nil)
	return runErr
}

func buildSinks(cfg logging.Config) (map[string]logging.Sink, error) {
	sinks := make(map[string]logging.Sink)
	if cfg.HasSink("console") {
		sinks["console"] = loggingSinks.NewConsole(os.Stdout)
	}
	if cfg.HasSink("json") {
		// Keep stdout open when the sink closes.
		var w io.Writer = struct{ io.Writer }{os.Stdout}
		if cfg.JSON.FilePath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
				return nil, fmt.Errorf("logging: create dir: %w", err)
			}
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("logging: open %s: %w", cfg.JSON.FilePath, err)
			}
			w = f
		}
		sinks["json"] = loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)
	}
	return sinks, nil
}

// loadRegion builds the configured region, or the embedded demo when no
// region file is set.
func loadRegion(cfg config.Content) (*world.Region, error) {
	var (
		doc *content.Document
		err error
	)
	if cfg.Region == "" {
		doc, err = content.Default()
	} else {
		doc, err = content.LoadFile(cfg.Region)
	}
	if err != nil {
		return nil, err
	}
	libraries := make([]*content.LibraryDoc, 0, len(cfg.Libraries))
	for _, path := range cfg.Libraries {
		lib, err := content.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if lib.Library == nil {
			return nil, fmt.Errorf("content: %s: no library section", path)
		}
		libraries = append(libraries, lib.Library)
	}
	return content.BuildDocument(doc, libraries...)
}

// restoreRegion applies the snapshot at path when one exists and returns the
// tick it was taken at.
func restoreRegion(path string, region *world.Region) (uint64, bool, error) {
	if path == "" {
		return 0, false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	snap, err := snapshot.Read(path)
	if err != nil {
		return 0, false, err
	}
	if err := snapshot.Apply(snap, region); err != nil {
		return 0, false, err
	}
	return snap.Header.Tick, true, nil
}

// scriptDiceLabel derives the dice stream label from the tick the region
// resumes at, so a restored region does not replay the rolls of its first run.
func scriptDiceLabel(tick uint64) string {
	if tick == 0 {
		return "script"
	}
	return fmt.Sprintf("script@%d", tick)
}
