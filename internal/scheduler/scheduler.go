// Package scheduler owns the process's repeatable-job registrations and
// the manual admin triggers that mirror them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyloom/storyloom-api/internal/cleanup"
	"github.com/storyloom/storyloom-api/internal/config"
	"github.com/storyloom/storyloom-api/internal/pipeline"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/topics"
)

// Repeatable registration keys. Stable across restarts so re-registering
// replaces rather than duplicates.
const (
	KeyMediaCleanup    = "cleanup-media"
	KeyTrendingCleanup = "cleanup-trending"
	KeySuggestions     = "suggestions"
	KeyTopicDispatch   = "topic-dispatch"
)

// schedulerClient is the slice of the queue client the manager needs.
type schedulerClient interface {
	ScheduleRepeating(
		ctx context.Context,
		queueName string,
		jobName string,
		payload map[string]any,
		cronPattern string,
		jobID string,
		opts queue.EnqueueOptions,
	) error
	ResetRepeatables(ctx context.Context) error
	ScheduledJobs(ctx context.Context) ([]queue.ScheduledJob, error)
	Enqueue(
		ctx context.Context,
		queueName string,
		jobName string,
		payload map[string]any,
		opts queue.EnqueueOptions,
	) (*queue.JobHandle, error)
}

// ErrTopicDispatchDisabled is returned by the manual trigger when the
// deployment carries no list API credentials.
var ErrTopicDispatchDisabled = errors.New("topic dispatch is disabled: no list API credentials configured")

// Manager registers the recurring jobs at boot and exposes the manual
// triggers the admin API uses.
type Manager struct {
	client        schedulerClient
	cfg           config.SchedulerConfig
	logger        *slog.Logger
	topicDispatch bool
}

// NewManager creates a scheduler manager.
func NewManager(client schedulerClient, cfg config.SchedulerConfig, logger *slog.Logger) *Manager {
	return &Manager{
		client:        client,
		cfg:           cfg,
		logger:        logger.With("component", "scheduler"),
		topicDispatch: true,
	}
}

// DisableTopicDispatch drops the topic-dispatch schedule from Register
// and makes its manual trigger refuse. Callers use it when the list API
// bearer token is not configured, since sync jobs would have nothing to
// fetch from.
func (m *Manager) DisableTopicDispatch() {
	m.topicDispatch = false
}

// Register clears all repeatable registrations and re-registers the
// full schedule. Clearing first keeps schedules removed from the code
// from lingering in the backend. A registration failure here should be
// treated as fatal by the caller: a worker process with no schedules is
// a silent outage.
func (m *Manager) Register(ctx context.Context) error {
	if err := m.client.ResetRepeatables(ctx); err != nil {
		return fmt.Errorf("failed to reset repeatable jobs: %w", err)
	}

	type registration struct {
		key     string
		queue   string
		jobName string
		cron    string
	}
	registrations := []registration{
		{KeyMediaCleanup, queue.QueueCleanup, cleanup.JobExpireMedia, m.cfg.MediaCleanupCron},
		{KeyTrendingCleanup, queue.QueueCleanup, cleanup.JobPurgeTrending, m.cfg.MediaCleanupCron},
		{KeySuggestions, queue.QueueContent, pipeline.JobDispatchSuggestions, m.cfg.SuggestionsCron},
	}
	if m.topicDispatch {
		registrations = append(registrations,
			registration{KeyTopicDispatch, queue.QueueContent, topics.JobDispatchTopics, m.cfg.TopicDispatchCron})
	} else {
		m.logger.Warn("topic dispatch schedule skipped: list API credentials not configured")
	}

	for _, r := range registrations {
		err := m.client.ScheduleRepeating(ctx, r.queue, r.jobName, nil, r.cron, r.key, queue.EnqueueOptions{})
		if err != nil {
			return fmt.Errorf("failed to register repeatable %q: %w", r.key, err)
		}
		m.logger.Info("repeatable job registered",
			"key", r.key,
			"queue", r.queue,
			"job_name", r.jobName,
			"cron", r.cron)
	}
	return nil
}

// TriggerManualCleanup enqueues one run of the named cleanup job.
func (m *Manager) TriggerManualCleanup(
	ctx context.Context,
	jobType string,
	opts queue.EnqueueOptions,
) (*queue.JobHandle, error) {
	switch jobType {
	case cleanup.JobExpireMedia, cleanup.JobPurgeTrending:
	default:
		return nil, fmt.Errorf("unknown cleanup job type %q", jobType)
	}

	handle, err := m.client.Enqueue(ctx, queue.QueueCleanup, jobType, nil, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue manual cleanup: %w", err)
	}
	m.logger.Info("manual cleanup triggered", "job_type", jobType, "job_id", handle.ID)
	return handle, nil
}

// TriggerManualTopicDispatch enqueues one run of the topic sync fan-out.
func (m *Manager) TriggerManualTopicDispatch(ctx context.Context) (*queue.JobHandle, error) {
	if !m.topicDispatch {
		return nil, ErrTopicDispatchDisabled
	}

	handle, err := m.client.Enqueue(ctx, queue.QueueContent, topics.JobDispatchTopics, nil, queue.EnqueueOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue manual topic dispatch: %w", err)
	}
	m.logger.Info("manual topic dispatch triggered", "job_id", handle.ID)
	return handle, nil
}

// TriggerManualSuggestionsForAll enqueues one run of the suggestion
// fan-out across all active accounts.
func (m *Manager) TriggerManualSuggestionsForAll(ctx context.Context) (*queue.JobHandle, error) {
	handle, err := m.client.Enqueue(ctx, queue.QueueContent, pipeline.JobDispatchSuggestions, nil, queue.EnqueueOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue manual suggestion pass: %w", err)
	}
	m.logger.Info("manual suggestion pass triggered", "job_id", handle.ID)
	return handle, nil
}

// ScheduledJobs returns the currently registered repeatables.
func (m *Manager) ScheduledJobs(ctx context.Context) ([]queue.ScheduledJob, error) {
	return m.client.ScheduledJobs(ctx)
}
