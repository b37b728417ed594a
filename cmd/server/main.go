/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the respondent-identity reconciliation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, -config YAML, RESPNO_* env, flags)
  2. Build the logger, store and project locker
  3. Create API handler and router
  4. Start the sweep scheduler when an interval is configured
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file
  -addr    HTTP listen address (default: :8080)
  -store   Store driver: sqlite, json or memory
  -db      SQLite database path; ":memory:" for an in-memory database
  -data    JSON store directory
  -redis   Redis URL for cross-process project locks
  -sweep   Background sweep interval, e.g. 1h (0 disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close store and Redis connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/respno.db"

  # Run with a shared Redis lock and hourly sweeps
  ./server -redis="redis://localhost:6379/0" -sweep=1h

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - project/open.go: Store and locker selection
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/api"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/config"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address")
	storeDriver := flag.String("store", "", "store driver (sqlite|json|memory)")
	dbPath := flag.String("db", "", "SQLite database path")
	dataDir := flag.String("data", "", "JSON store directory")
	redisURL := flag.String("redis", "", "Redis URL for project locks")
	sweep := flag.Duration("sweep", -1, "background sweep interval (0 disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *storeDriver != "" {
		cfg.Store.Driver = *storeDriver
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *redisURL != "" {
		cfg.RedisURL = *redisURL
	}
	if *sweep >= 0 {
		cfg.SweepInterval = *sweep
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize service
	svc, closeService, err := project.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize project service", "error", err)
	}
	defer closeService()

	// Create router
	handler := api.NewHandler(svc, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewSweepScheduler(svc, log, cfg.SweepInterval)
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", "addr", cfg.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return
	}

	log.Info("Server stopped")
}
