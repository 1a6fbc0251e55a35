// Package main implements the background worker process: it registers
// the repeatable schedules, attaches handlers to every queue, and drains
// gracefully on shutdown.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/storyloom/storyloom-api/internal/cleanup"
	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/pipeline"
	"github.com/storyloom/storyloom-api/internal/platform/gemini"
	"github.com/storyloom/storyloom-api/internal/platform/listapi"
	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/platform/postgres"
	"github.com/storyloom/storyloom-api/internal/platform/renderapi"
	"github.com/storyloom/storyloom-api/internal/platform/s3store"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/scheduler"
	"github.com/storyloom/storyloom-api/internal/topics"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
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

	db, err := openDatabase(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	appLogger.Info("redis connection established", "addr", cfg.Redis.Addr)

	client := queue.NewClient(rdb, appLogger)

	// Stores.
	actorStore := postgres.NewActorStore(db)
	artifactStore := postgres.NewArtifactStore(db)
	mediaStore := postgres.NewMediaStore(db)
	topicStore := postgres.NewTopicStore(db)
	suggestionStore := postgres.NewSuggestionStore(db)

	// External services.
	geminiClient, err := gemini.NewClient(ctx, appLogger, cfg.AI)
	if err != nil {
		return fmt.Errorf("failed to create AI client: %w", err)
	}
	analyzer := gemini.NewAnalyzer(geminiClient)
	imageRenderer := gemini.NewImageRenderer(geminiClient)
	narrator := gemini.NewNarrator(geminiClient)
	summarizer := gemini.NewSummarizer(geminiClient)
	writer := gemini.NewWriter(geminiClient)

	storage, err := s3store.New(ctx, appLogger, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	videoRenderer, err := renderapi.NewClient(appLogger, cfg.Render)
	if err != nil {
		return fmt.Errorf("failed to create render client: %w", err)
	}

	// Handlers.
	avatarPipeline := pipeline.NewAvatarPipeline(actorStore, analyzer, imageRenderer, storage)
	pageImagePipeline := pipeline.NewPageImagePipeline(artifactStore, mediaStore, imageRenderer, storage)
	audioPipeline := pipeline.NewAudioPipeline(artifactStore, mediaStore, narrator, storage, client)
	videoPipeline := pipeline.NewVideoPipeline(artifactStore, mediaStore, videoRenderer, storage)
	postPipeline := pipeline.NewPostPipeline(artifactStore, writer)
	suggestionDispatcher := pipeline.NewSuggestionDispatcher(artifactStore, client)
	suggestionPipeline := pipeline.NewSuggestionPipeline(artifactStore, suggestionStore, summarizer)

	// Topic sync needs list API credentials; without them the topic
	// handlers and their dispatch schedule stay off.
	contentHandlers := map[string]queue.Handler{
		pipeline.JobGeneratePost:        postPipeline.HandleGeneratePost,
		pipeline.JobDispatchSuggestions: suggestionDispatcher.HandleDispatchSuggestions,
		pipeline.JobGenerateSuggestions: suggestionPipeline.HandleGenerateSuggestions,
	}
	manager := scheduler.NewManager(client, cfg.Scheduler, appLogger)
	if cfg.ListAPI.BearerToken == "" {
		manager.DisableTopicDispatch()
		appLogger.Warn("list API bearer token not configured, topic sync disabled")
	} else {
		listSource, err := listapi.NewClient(appLogger, cfg.ListAPI)
		if err != nil {
			return fmt.Errorf("failed to create list API client: %w", err)
		}
		topicDispatcher := topics.NewDispatcher(topicStore, client, cfg.Topics)
		topicSyncer := topics.NewSyncer(topicStore, listSource, client, cfg.Topics)
		topicDigester := topics.NewDigester(topicStore, summarizer, cfg.Topics)
		contentHandlers[topics.JobDispatchTopics] = topicDispatcher.HandleDispatchTopics
		contentHandlers[topics.JobSyncTopic] = topicSyncer.HandleSyncTopic
		contentHandlers[topics.JobDigestTopic] = topicDigester.HandleDigestTopic
	}

	mediaSweeper := cleanup.NewMediaSweeper(mediaStore)
	trendingSweeper := cleanup.NewTrendingSweeper(topicStore)

	// Schedules. A worker with no schedules is a silent outage, so a
	// failed registration kills the process.
	if err := manager.Register(ctx); err != nil {
		return fmt.Errorf("failed to register schedules: %w", err)
	}

	repeater := queue.NewRepeater(client, appLogger, 0)
	repeater.Start()
	defer repeater.Stop()

	worker := queue.NewWorker(client, appLogger)
	worker.SetFailedHandler(func(job *queue.Job, err error) {
		appLogger.Error("job moved to dead set",
			"queue", job.Queue,
			"job_name", job.Name,
			"job_id", job.ID,
			"attempts_made", job.AttemptsMade,
			"error", err)
	})

	err = worker.Attach(queue.QueueMedia, map[string]queue.Handler{
		pipeline.JobGenerateAvatar:    avatarPipeline.HandleGenerateAvatar,
		pipeline.JobGenerateAudio:     audioPipeline.HandleGenerateAudio,
		pipeline.JobGeneratePageAudio: audioPipeline.HandleGeneratePageAudio,
		pipeline.JobGeneratePageImage: pageImagePipeline.HandleGeneratePageImage,
	}, queue.AttachOptions{Concurrency: cfg.Queues.MediaConcurrency})
	if err != nil {
		return fmt.Errorf("failed to attach media queue: %w", err)
	}

	err = worker.Attach(queue.QueueVideo, map[string]queue.Handler{
		pipeline.JobRenderVideo: videoPipeline.HandleRenderVideo,
	}, queue.AttachOptions{
		Concurrency: cfg.Queues.VideoConcurrency,
		Limiter: &queue.LimiterOptions{
			Max:      cfg.Queues.VideoLimiterMax,
			Duration: cfg.Queues.VideoLimiterWindow,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to attach video queue: %w", err)
	}

	err = worker.Attach(queue.QueueContent, contentHandlers,
		queue.AttachOptions{Concurrency: cfg.Queues.ContentConcurrency})
	if err != nil {
		return fmt.Errorf("failed to attach content queue: %w", err)
	}

	err = worker.Attach(queue.QueueCleanup, map[string]queue.Handler{
		cleanup.JobExpireMedia:   mediaSweeper.HandleExpireMedia,
		cleanup.JobPurgeTrending: trendingSweeper.HandlePurgeTrending,
	}, queue.AttachOptions{Concurrency: cfg.Queues.CleanupConcurrency})
	if err != nil {
		return fmt.Errorf("failed to attach cleanup queue: %w", err)
	}

	// Job metrics live in this process; expose them for scraping.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server failed", "error", err)
		}
	}()

	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	appLogger.Info("worker started",
		"media_concurrency", cfg.Queues.MediaConcurrency,
		"video_concurrency", cfg.Queues.VideoConcurrency,
		"content_concurrency", cfg.Queues.ContentConcurrency,
		"cleanup_concurrency", cfg.Queues.CleanupConcurrency)

	// Block until a shutdown signal, then drain in-flight jobs.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("shutdown signal received, draining", "signal", sig.String())

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	appLogger.Info("worker drained, exiting")
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLogger.Info("database connection established")
	return db, nil
}
