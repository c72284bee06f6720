package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxhall/frontdesk/pkg/frontdesk"
	"github.com/voxhall/frontdesk/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	drainTimeout := flag.Duration("drain_timeout", 30*time.Second, "how long to wait for active calls on shutdown")
	flag.Parse()

	cfg, err := frontdesk.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config_load_failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := frontdesk.NewEngine(ctx, cfg)
	if err != nil {
		slog.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	lc := runner.NewLifecycleRunner(engine, runner.Hooks{
		OnStart: func() {
			if err := engine.Start(); err != nil {
				slog.Error("engine_start_failed", "error", err)
				stop()
			}
		},
		OnStop: func() {
			if err := engine.Stop(); err != nil {
				slog.Error("engine_stop_failed", "error", err)
			}
		},
	}, *drainTimeout)

	if err := lc.Run(ctx); err != nil {
		slog.Error("shutdown_incomplete", "error", err)
		os.Exit(1)
	}
	slog.Info("frontdesk_stopped")
}
