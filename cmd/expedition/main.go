// Command expedition runs the robot expedition simulation behind an HTTP
// control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/robot-expedition/internal/api"
	"github.com/talgya/robot-expedition/internal/config"
	"github.com/talgya/robot-expedition/internal/engine"
	"github.com/talgya/robot-expedition/internal/eventlog"
	"github.com/talgya/robot-expedition/internal/persistence"
	"github.com/talgya/robot-expedition/internal/robots"
	"github.com/talgya/robot-expedition/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults if empty)")
	explorers := flag.Int("explorers", 1, "explorers to dispatch at start")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("robot expedition starting",
		"width", cfg.World.Width,
		"height", cfg.World.Height,
		"seed", cfg.World.Seed,
	)

	// ── Journal ───────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.Journal.DBPath)
	if err != nil {
		slog.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("journal opened", "path", cfg.Journal.DBPath)

	ec := cfg.Engine()
	ec.Sinks = append(ec.Sinks, db)

	var elog *eventlog.Writer
	if cfg.Journal.EventLogDir != "" {
		elog = eventlog.NewWriter(cfg.Journal.EventLogDir, "events")
		defer elog.Close()
		ec.Sinks = append(ec.Sinks, elog)
		slog.Info("event log enabled", "dir", cfg.Journal.EventLogDir)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(ec)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	sim.ReadMap(func(m *world.Map) {
		for kind, n := range world.Counts(m) {
			slog.Info("tiles", "kind", kind, "count", n)
		}
		if err := db.SaveRunInfo(m.Width, m.Height, m.Seed); err != nil {
			slog.Error("run info save failed", "error", err)
		}
	})

	for i := 0; i < *explorers; i++ {
		if _, err := sim.SendRobot(robots.Explorer, nil); err != nil {
			slog.Error("initial dispatch failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("EXPEDITION_ADMIN_KEY not set, control endpoints are open")
	}
	apiServer := &api.Server{
		Sim:               sim,
		DB:                db,
		Port:              cfg.API.Port,
		AdminKey:          cfg.API.AdminKey,
		DispatchPerMinute: cfg.API.DispatchPerMinute,
	}
	apiServer.Start()

	fmt.Printf("\nExpedition ready on a %dx%d map, base at (%d,%d).\n",
		cfg.World.Width, cfg.World.Height, sim.BasePosition().X, sim.BasePosition().Y)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if !sim.Running() {
		fmt.Printf("Paused. POST /api/v1/play to start.\n")
	}

	// ── Shutdown ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	sim.Shutdown()
	sim.Wait()

	st := sim.Stats()
	fmt.Printf("Expedition stopped. Energy %d, minerals %d, %d deposits located.\n",
		st.Energy, st.Minerals, st.Located)
}
