package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// repeatablesKey is the hash of registered repeatable schedules, keyed by
// the registration job ID. One hash for the whole backend: schedules are
// process-independent state, and any repeater instance may fire them.
const repeatablesKey = "q:repeatables"

// repeatEntry is the stored form of one repeatable schedule.
type repeatEntry struct {
	Key         string         `json:"key"`
	Queue       string         `json:"queue"`
	JobName     string         `json:"job_name"`
	Payload     map[string]any `json:"payload,omitempty"`
	CronPattern string         `json:"cron_pattern"`
	NextRun     time.Time      `json:"next_run"`
	Opts        EnqueueOptions `json:"opts"`
}

// ScheduledJob is the read-only introspection view of one repeatable.
type ScheduledJob struct {
	Name        string    `json:"name"`
	Queue       string    `json:"queue"`
	CronPattern string    `json:"cron_pattern"`
	NextRun     time.Time `json:"next_run_time"`
	Key         string    `json:"key"`
}

// ScheduleRepeating registers a cron-driven repeatable job. Registering
// with an existing jobID replaces the prior schedule. Callers should
// clear stale registrations with ResetRepeatables before re-registering
// at boot, so removed schedules do not linger in the backend.
func (c *Client) ScheduleRepeating(
	ctx context.Context,
	queueName string,
	jobName string,
	payload map[string]any,
	cronPattern string,
	jobID string,
	opts EnqueueOptions,
) error {
	if jobID == "" {
		return fmt.Errorf("repeatable registration requires a job ID")
	}

	schedule, err := cron.ParseStandard(cronPattern)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCronPattern, cronPattern, err)
	}

	entry := repeatEntry{
		Key:         jobID,
		Queue:       queueName,
		JobName:     jobName,
		Payload:     payload,
		CronPattern: cronPattern,
		NextRun:     schedule.Next(time.Now().UTC()),
		Opts:        opts,
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal repeatable entry: %w", err)
	}

	if err := c.rdb.HSet(ctx, repeatablesKey, jobID, encoded).Err(); err != nil {
		return fmt.Errorf("failed to register repeatable job: %w", err)
	}

	c.logger.Info("registered repeatable job",
		"key", jobID,
		"queue", queueName,
		"job_name", jobName,
		"cron", cronPattern,
		"next_run", entry.NextRun)

	return nil
}

// RemoveRepeating deletes a repeatable registration. Removing an unknown
// key is a no-op.
func (c *Client) RemoveRepeating(ctx context.Context, jobID string) error {
	if err := c.rdb.HDel(ctx, repeatablesKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to remove repeatable job: %w", err)
	}
	return nil
}

// ResetRepeatables clears every repeatable registration. Boot sequence is
// reset-then-register, so renamed or retired schedules cannot leave
// duplicate cron entries behind.
func (c *Client) ResetRepeatables(ctx context.Context) error {
	if err := c.rdb.Del(ctx, repeatablesKey).Err(); err != nil {
		return fmt.Errorf("failed to reset repeatable jobs: %w", err)
	}
	return nil
}

// ScheduledJobs returns all repeatable registrations, sorted by key.
func (c *Client) ScheduledJobs(ctx context.Context) ([]ScheduledJob, error) {
	raw, err := c.rdb.HGetAll(ctx, repeatablesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read repeatable jobs: %w", err)
	}

	jobs := make([]ScheduledJob, 0, len(raw))
	for _, encoded := range raw {
		var entry repeatEntry
		if err := json.Unmarshal([]byte(encoded), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal repeatable entry: %w", err)
		}
		jobs = append(jobs, ScheduledJob{
			Name:        entry.JobName,
			Queue:       entry.Queue,
			CronPattern: entry.CronPattern,
			NextRun:     entry.NextRun,
			Key:         entry.Key,
		})
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Key < jobs[j].Key })
	return jobs, nil
}

// Repeater fires due repeatable schedules by enqueuing their jobs. Every
// fired instance carries a dedupe ID derived from the schedule key and
// the fire time, so several repeater processes tick safely against the
// same backend.
type Repeater struct {
	client   *Client
	logger   *slog.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRepeater creates a repeater ticking at the given interval.
// Intervals at or below zero default to 15 seconds.
func NewRepeater(client *Client, log *slog.Logger, interval time.Duration) *Repeater {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Repeater{
		client:   client,
		logger:   log.With("component", "queue_repeater"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the tick loop.
func (r *Repeater) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				if err := r.FireDue(r.ctx, time.Now().UTC()); err != nil && r.ctx.Err() == nil {
					r.logger.Error("failed to fire due repeatable jobs", "error", err)
				}
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit.
func (r *Repeater) Stop() {
	r.cancel()
	r.wg.Wait()
}

// FireDue enqueues every schedule whose next run is at or before now and
// advances its next-run time. Exposed for tests and manual ticking.
func (r *Repeater) FireDue(ctx context.Context, now time.Time) error {
	raw, err := r.client.rdb.HGetAll(ctx, repeatablesKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read repeatable jobs: %w", err)
	}

	for key, encoded := range raw {
		var entry repeatEntry
		if err := json.Unmarshal([]byte(encoded), &entry); err != nil {
			r.logger.Error("skipping corrupt repeatable entry", "key", key, "error", err)
			continue
		}
		if entry.NextRun.After(now) {
			continue
		}

		schedule, err := cron.ParseStandard(entry.CronPattern)
		if err != nil {
			// Registration validates patterns, so this only happens if
			// the stored entry was tampered with. Drop it loudly.
			r.logger.Error("removing repeatable with unparseable cron",
				"key", key,
				"cron", entry.CronPattern,
				"error", err)
			_ = r.client.RemoveRepeating(ctx, key)
			continue
		}

		opts := entry.Opts
		opts.JobID = fmt.Sprintf("%s:%d", entry.Key, entry.NextRun.UnixMilli())
		opts.Delay = 0

		if _, err := r.client.Enqueue(ctx, entry.Queue, entry.JobName, entry.Payload, opts); err != nil {
			r.logger.Error("failed to enqueue repeatable instance",
				"key", key,
				"queue", entry.Queue,
				"job_name", entry.JobName,
				"error", err)
			continue
		}

		entry.NextRun = schedule.Next(now)
		updated, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal repeatable entry: %w", err)
		}
		if err := r.client.rdb.HSet(ctx, repeatablesKey, key, updated).Err(); err != nil {
			return fmt.Errorf("failed to advance repeatable schedule: %w", err)
		}

		r.logger.Info("fired repeatable job",
			"key", key,
			"queue", entry.Queue,
			"job_name", entry.JobName,
			"next_run", entry.NextRun)
	}

	return nil
}
