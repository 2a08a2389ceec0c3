package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"direct-chat/auth"
	"direct-chat/infrastructure/httpapi"
	"direct-chat/infrastructure/ws"
	"direct-chat/internal"
	"direct-chat/moderation"
	"direct-chat/projection"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/runtime/workers"
	"direct-chat/search"
	"direct-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	censoredChar, err := characterRune(config.ModerationChar)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB) & Search Index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.NewMessageIndex(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Moderation
	words, err := moderation.LoadWords()
	if err != nil {
		return fmt.Errorf("loading censored words failed: %w", err)
	}
	moderator, err := moderation.NewModerator(words.Words, censoredChar)
	if err != nil {
		return fmt.Errorf("building moderator failed: %w", err)
	}
	log.Info("Moderation ready", "languages", words.Languages, "words", len(words.Words))

	// 4. Supervision & Orchestration
	sup := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	messages := repositories.NewMessageRepository(db, log)
	rooms := repositories.NewRoomRepository(db, log)
	users := repositories.NewUserRepository(db)

	recent := projection.NewRecentChats()
	stored, err := messages.AllMessages()
	if err != nil {
		return fmt.Errorf("warming recent chats failed: %w", err)
	}
	recent.Seed(stored)
	log.Info("Recent chats warmed from store", "messages", len(stored))

	orchestrator := runtime.NewOrchestrator(log, sup, registry, messages, rooms,
		&moderator, config.BufferSize, config.SinkTimeout)
	orchestrator.AddSinks(index, recent)

	telemetry := workers.NewTelemetryWorker(log, registry, config.MetricInterval)
	sup.Add(telemetry)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 7. Services & HTTP Surface
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(users, tokens)
	chatService := services.NewChatService(orchestrator, users, index, recent)

	mux := http.NewServeMux()
	ws.NewServer(ctx, log, chatService, tokens, config.ConnectionBufferSize).Register(mux)
	httpapi.NewServer(log, authService, chatService, tokens).Register(mux)
	internal.NewDebugServer(log, db, nil, func() map[string]any {
		stats := telemetry.GetLatest()
		return map[string]any{
			"cpu_percent": stats.CPUPercent,
			"rss_bytes":   stats.RSSBytes,
			"goroutines":  stats.Goroutines,
			"sessions":    stats.Sessions,
		}
	}).Register(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
