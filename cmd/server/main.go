// Package main implements the admin API process: manual job triggers,
// schedule introspection, event injection, and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storyloom/storyloom-api/internal/api"
	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/events"
	"github.com/storyloom/storyloom-api/internal/pipeline"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/scheduler"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	client := queue.NewClient(rdb, appLogger)
	manager := scheduler.NewManager(client, cfg.Scheduler, appLogger)
	if cfg.ListAPI.BearerToken == "" {
		// Keep the manual trigger honest: with no credentials the worker
		// attaches no topic handlers, so dispatching would only dead-letter.
		manager.DisableTopicDispatch()
	}

	// Injected generation events flow through the same translation
	// layer the services use, so re-driving a pipeline from the admin
	// API behaves exactly like the original request.
	emitter := events.NewInMemoryEventEmitter(appLogger)
	emitter.RegisterHandler(events.NewQueueEventHandler(client, queueBindings(), appLogger))

	admin := api.NewAdminHandler(manager, emitter, appLogger)
	router := api.NewRouter(admin, appLogger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("admin server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		appLogger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	appLogger.Info("server stopped")
	return nil
}

// queueBindings maps generation request events to their queue placement.
func queueBindings() map[string]events.Binding {
	return map[string]events.Binding{
		events.TypeAvatarRequested: {
			Queue:       queue.QueueMedia,
			JobName:     pipeline.JobGenerateAvatar,
			DedupeField: "actor_id",
		},
		events.TypeAudioRequested: {
			Queue:       queue.QueueMedia,
			JobName:     pipeline.JobGenerateAudio,
			DedupeField: "artifact_id",
		},
		events.TypePageImageRequested: {
			Queue:       queue.QueueMedia,
			JobName:     pipeline.JobGeneratePageImage,
			DedupeField: "page_id",
		},
		events.TypePostRequested: {
			Queue:       queue.QueueContent,
			JobName:     pipeline.JobGeneratePost,
			DedupeField: "artifact_id",
		},
		events.TypeSuggestionsRequested: {
			Queue:       queue.QueueContent,
			JobName:     pipeline.JobGenerateSuggestions,
			DedupeField: "account_id",
		},
	}
}
