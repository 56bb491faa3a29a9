// Ringleader - Game Lobby & Relay Server
//
// Ringleader pairs up players of 8-bit era network games: clients
// discover, create and join games through a tiny HTTP lobby, and when
// a game fills up the server starts a per-game TCP or UDP relay that
// forwards numbered frames between the players. A read-only monitor
// API with a live dashboard, optional MQTT telemetry and an optional
// SQLite game archive make up the operator surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/api"
	"github.com/ringleader-project/ringleader/internal/cli"
	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/db"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/health"
	"github.com/ringleader-project/ringleader/internal/lobby"
	"github.com/ringleader-project/ringleader/internal/scheduler"
	"github.com/ringleader-project/ringleader/internal/telemetry"
	"github.com/ringleader-project/ringleader/internal/util"
)

const (
	AppVersion = "1.0.0"
	Banner     = `
  ____  _             _                _
 |  _ \(_)_ __   __ _| | ___  __ _  __| | ___ _ __
 | |_) | | '_ \ / _' | |/ _ \/ _' |/ _' |/ _ \ '__|
 |  _ <| | | | | (_| | |  __/ (_| | (_| |  __/ |
 |_| \_\_|_| |_|\__, |_|\___|\__,_|\__,_|\___|_|
                |___/  v%s
 Game Lobby & Relay Server
`
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ringleader <config-file>")
		fmt.Fprintln(os.Stderr, "       ringleader <status|games|history> [--api URL] [--count N]")
		os.Exit(2)
	}

	// Admin subcommands query a running lobby over HTTP and exit.
	// Anything else is treated as a config file path.
	switch args[0] {
	case "status", "games", "history":
		os.Exit(cli.Run(args))
	}

	os.Exit(runServer(args[0]))
}

// runServer brings the lobby up from the given config file and blocks until
// a shutdown signal arrives or a component fails. The return value is the
// process exit status: 0 after a signal-driven shutdown, 1 when startup
// fails or a component reports a fatal error.
func runServer(configPath string) int {
	// Print banner
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	if err := util.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Str("config", cfg.Path()).
		Msg("starting Ringleader")

	// Validate configuration
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Error().Msg("configuration validation failed, please fix the errors above")
		return 1
	}

	// Log system info
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize core components
	eventBus := events.NewEventBus()
	coord := lobby.NewCoordinator(ctx, cfg, eventBus)

	// Game history archive (optional)
	var history *db.History
	if cfg.HistoryDB != "" {
		history, err = db.NewHistory(cfg.HistoryDB)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.HistoryDB).Msg("failed to open game history database")
			return 1
		}
		history.Attach(eventBus)
	}

	// Initialize the lobby HTTP server (wire protocol + monitor API)
	apiServer := api.NewServer(cfg, eventBus, coord, history)

	// Initialize health check manager
	healthMgr := health.NewManager(eventBus, coord)

	// Initialize the janitor scheduler
	sched := scheduler.NewScheduler(coord)

	// MQTT telemetry (optional)
	var publisher *telemetry.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = telemetry.NewPublisher(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	// ---------------------------------------------------------------
	// Launch all concurrent tasks
	// ---------------------------------------------------------------
	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: the lobby server itself. A bind failure is fatal.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.LobbyPort).Msg("starting lobby server")
		if err := apiServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("lobby server: %w", err)
		}
	}()

	// Task 2: health checks (port pool, client directory, system load)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting health check manager")
		healthMgr.Start(ctx)
	}()

	// Task 3: janitor scheduler (join timeouts, idle clients)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting scheduler")
		sched.Start(ctx)
	}()

	// Task 4: MQTT telemetry
	if publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("broker", cfg.MQTTBroker).Msg("starting MQTT telemetry")
			if err := publisher.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// A shutdown forced by a component failure still runs the full
	// cleanup below, but the process must report it.
	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
		exitCode = 1
	}

	log.Info().Msg("initiating graceful shutdown...")

	// Emit the shutdown event synchronously; the coordinator has ended
	// every game and stopped every relay by the time this returns.
	eventBus.EmitSync(context.Background(), events.Event{
		Type:   events.EventShutdown,
		Source: "main",
	})

	// Cancel the root context to stop the remaining tasks
	cancel()

	// Wait for all goroutines with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	// Stop the event bus before closing the archive; Stop waits for
	// in-flight handlers, including pending history writes.
	eventBus.Stop()
	if history != nil {
		if err := history.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close game history database")
		}
	}

	log.Info().Msg("Ringleader stopped")
	return exitCode
}
