package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"     validate:"required"`
	Queues    QueueConfig     `mapstructure:"queues"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	AI        AIConfig        `mapstructure:"ai"        validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Topics    TopicsConfig    `mapstructure:"topics"`
	Render    RenderConfig    `mapstructure:"render"`
	ListAPI   ListAPIConfig   `mapstructure:"list_api"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains connection settings for the queue backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig bounds worker concurrency per queue. The asymmetry is
// deliberate: video rendering is far heavier than metadata updates.
type QueueConfig struct {
	MediaConcurrency   int `mapstructure:"media_concurrency"   validate:"required,gt=0"`
	VideoConcurrency   int `mapstructure:"video_concurrency"   validate:"required,gt=0"`
	ContentConcurrency int `mapstructure:"content_concurrency" validate:"required,gt=0"`
	CleanupConcurrency int `mapstructure:"cleanup_concurrency" validate:"required,gt=0"`

	// VideoLimiterMax render starts per VideoLimiterWindow, shared
	// across every worker process attached to the video queue.
	VideoLimiterMax    int           `mapstructure:"video_limiter_max"    validate:"required,gt=0"`
	VideoLimiterWindow time.Duration `mapstructure:"video_limiter_window" validate:"required"`
}

// SchedulerConfig contains the cron patterns for the repeatable jobs.
type SchedulerConfig struct {
	MediaCleanupCron  string `mapstructure:"media_cleanup_cron"  validate:"required"`
	SuggestionsCron   string `mapstructure:"suggestions_cron"    validate:"required"`
	TopicDispatchCron string `mapstructure:"topic_dispatch_cron" validate:"required"`
}

// AIConfig contains settings for the AI provider integration.
type AIConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	VisionModel  string `mapstructure:"vision_model"   validate:"required"`
	AudioModel   string `mapstructure:"audio_model"    validate:"required"`

	// MaxRetries bounds transient-error retries per model call; the
	// queue's own retry policy sits above this.
	MaxRetries        int `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// StorageConfig contains settings for the media object store.
type StorageConfig struct {
	Bucket       string        `mapstructure:"bucket"         validate:"required"`
	Region       string        `mapstructure:"region"         validate:"required"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl" validate:"required"`
}

// RenderConfig points at the external video composition service.
type RenderConfig struct {
	URL     string        `mapstructure:"url"     validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ListAPIConfig configures the external list API the topic sync reads
// from. The bearer token has no default; topic sync is disabled without
// it.
type ListAPIConfig struct {
	BaseURL     string        `mapstructure:"base_url"     validate:"omitempty,url"`
	BearerToken string        `mapstructure:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TopicsConfig tunes the topic sync/digest pipelines. Defaults keep the
// external list API under its 15-requests-per-15-minutes budget.
type TopicsConfig struct {
	StaggerDelay    time.Duration `mapstructure:"stagger_delay"`
	DigestThreshold int           `mapstructure:"digest_threshold"`
	DigestMaxPosts  int           `mapstructure:"digest_max_posts"`
	DigestLookback  time.Duration `mapstructure:"digest_lookback"`
	TrendingTTL     time.Duration `mapstructure:"trending_ttl"`
	SyncAttempts    int           `mapstructure:"sync_attempts"`
	SyncBackoff     time.Duration `mapstructure:"sync_backoff"`
}
