package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cascadehq/cascade/internal/logging"
	"github.com/cascadehq/cascade/internal/scheduler"
	"github.com/cascadehq/cascade/internal/store"
	"github.com/cascadehq/cascade/internal/streaming"
	"github.com/cascadehq/cascade/pkg/engine"
	"github.com/cascadehq/cascade/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cascade: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	sink := store.NewHistorySink(st)
	hub := streaming.NewMemoryHub()

	registry := engine.NewRegistry()
	engCfg := engine.Config{
		PoolSize:       cfg.PoolSize,
		StrictOutcomes: cfg.StrictOutcomes,
		MethodTimeout:  cfg.methodTimeout(),
		Logger:         logger,
		Sink:           engine.FanoutSink{sink, hub},
	}
	for _, g := range flows() {
		if _, err := registry.Register(g, engCfg); err != nil {
			return fmt.Errorf("register flow %s: %w", g.Name(), err)
		}
		logger.Info("flow registered", "flow", g.Name())
	}
	defer registry.Shutdown()

	// Live terminal feed of run completions, regardless of who kicked
	// them off (MCP caller or scheduler).
	runEvents, unsubscribe, err := hub.Subscribe(ctx, streaming.Filter{
		EventTypes: []string{engine.EventRunCompleted, engine.EventRunFailed, engine.EventRunCancelled},
	})
	if err != nil {
		return fmt.Errorf("subscribe to run events: %w", err)
	}
	defer unsubscribe()
	go func() {
		for ev := range runEvents {
			logger.Info("run finished", "flow", ev.Flow, "run_id", ev.RunID, "event", ev.Type)
		}
	}()

	if cfg.Scheduler {
		sched := scheduler.New(scheduler.RunnerFunc(
			func(ctx context.Context, flowName string, inputs map[string]any) error {
				result, err := registry.Kickoff(ctx, flowName, inputs)
				if err != nil {
					return err
				}
				return sink.RecordResult(ctx, result)
			}), logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := mcp.NewCascadeServer(mcp.CascadeServerDeps{
		Registry: registry,
		Store:    st,
		History:  sink,
		Logger:   logger,
	})

	logger.Info("cascade server listening on stdio",
		"flows", len(registry.Names()), "db", cfg.DBPath)
	return srv.Serve(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// stdout carries the MCP transport, logs go to stderr.
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
