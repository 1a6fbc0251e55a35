package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables (prefix STORYLOOM_, nested keys
// joined with underscores) take precedence over file values, which take
// precedence over defaults. Returns a populated Config or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("STORYLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sensible one.
// Secrets (database URL, API keys) deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queues.media_concurrency", 10)
	v.SetDefault("queues.video_concurrency", 2)
	v.SetDefault("queues.content_concurrency", 3)
	v.SetDefault("queues.cleanup_concurrency", 2)
	v.SetDefault("queues.video_limiter_max", 10)
	v.SetDefault("queues.video_limiter_window", time.Minute)

	v.SetDefault("scheduler.media_cleanup_cron", "0 */4 * * *")
	v.SetDefault("scheduler.suggestions_cron", "0 * * * *")
	v.SetDefault("scheduler.topic_dispatch_cron", "*/30 * * * *")

	v.SetDefault("ai.model_name", "gemini-2.0-flash")
	v.SetDefault("ai.vision_model", "gemini-2.0-flash")
	v.SetDefault("ai.audio_model", "gemini-2.0-flash-tts")
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.retry_delay_seconds", 2)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.signed_url_ttl", time.Hour)

	v.SetDefault("render.url", "http://localhost:3001/render")
	v.SetDefault("render.timeout", 5*time.Minute)

	v.SetDefault("list_api.base_url", "https://api.twitter.com/2")
	v.SetDefault("list_api.timeout", 30*time.Second)

	v.SetDefault("topics.stagger_delay", 90*time.Second)
	v.SetDefault("topics.digest_threshold", 10)
	v.SetDefault("topics.digest_max_posts", 100)
	v.SetDefault("topics.digest_lookback", 7*24*time.Hour)
	v.SetDefault("topics.trending_ttl", 48*time.Hour)
	v.SetDefault("topics.sync_attempts", 3)
	v.SetDefault("topics.sync_backoff", time.Minute)
}
