package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-mesh/api"
	"chat-mesh/hub"
	"chat-mesh/identity"
	"chat-mesh/internal"
	"chat-mesh/repositories"
	"chat-mesh/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer (database close, hub shutdown) executes
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Stores, hub, identity client, aggregation service
	maxHistory := 0
	if config.MaxHistoryLimit != nil {
		maxHistory = *config.MaxHistoryLimit
	}
	chatRepository := repositories.NewChatRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log, maxHistory)

	broadcast := newHub(log, config)
	defer func() {
		_ = broadcast.Close()
	}()

	directory := identity.NewClient(log, config.UserServiceURL, config.IdentityTimeout)
	chatService := services.NewChatService(log, chatRepository, messageRepository, directory, broadcast)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Optional badger inspector
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, nil)
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 6. HTTP Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: api.NewRouter(log, chatService, broadcast, directory),
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

// newHub selects the broadcast backend once at startup. An unreachable
// broker never prevents the service from running: it degrades to the
// local-process-only registry with a logged warning.
func newHub(log *slog.Logger, config Config) hub.Hub {
	if config.RedisAddr == "" {
		log.Info("No broker configured, using local broadcast hub")
		return hub.NewLocalHub(log, config.SubscriberBufferSize)
	}
	poolSize := config.RedisPoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	redisHub, err := hub.NewRedisHub(log, config.RedisAddr, config.SubscriberBufferSize, poolSize)
	if err != nil {
		log.Warn("Broker unreachable, falling back to local broadcast hub",
			"addr", config.RedisAddr, "error", err)
		return hub.NewLocalHub(log, config.SubscriberBufferSize)
	}
	log.Info("Broker-backed broadcast hub connected", "addr", config.RedisAddr)
	return redisHub
}
