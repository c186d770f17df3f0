package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tilesuite/server/internal/app"
	"tilesuite/server/internal/config"
	"tilesuite/server/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to the server YAML config")
	flag.Parse()

	logger := telemetry.WrapLogger(log.Default())
	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	settings.ApplyEnv(os.Getenv, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{Logger: logger, Settings: settings}); err != nil {
		log.Fatalf("%v", err)
	}
}
