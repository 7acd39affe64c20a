/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the VivaBucks rewards engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration, apply command-line flag overrides
  2. Initialize SQLite store
  3. Load the tier table (built-in canonical, or JSON override)
  4. Create engine, notifier, and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database and Redis connections
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rewards.db"

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

  # Publish ledger events to Redis
  REDIS_ENABLED=true REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vivarx/rewards-engine/api"
	"github.com/vivarx/rewards-engine/config"
	"github.com/vivarx/rewards-engine/events"
	"github.com/vivarx/rewards-engine/rewards"
	"github.com/vivarx/rewards-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Storage.Path, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Tier table: built-in canonical config, or a JSON override
	rewardsCfg := rewards.DefaultConfig()
	if cfg.Rewards.ConfigFile != "" {
		data, err := os.ReadFile(cfg.Rewards.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to read rewards config: %v", err)
		}
		rewardsCfg, err = rewards.ParseConfig(data)
		if err != nil {
			log.Fatalf("Invalid rewards config: %v", err)
		}
	}

	engine, err := rewards.NewEngine(store, rewardsCfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// Notifier: in-process by default, Redis fan-out when configured
	var notifier events.Notifier = events.NewManager()
	if cfg.Redis.Enabled {
		redisNotifier, err := events.NewRedisNotifier(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	}

	handler := api.NewHandler(engine, store, notifier)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Rewards engine listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
