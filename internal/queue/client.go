package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyspace layout, all per queue:
//
//	q:{name}:ready    ZSET  member=jobID  score=priority*2^40+seq
//	q:{name}:delayed  ZSET  member=jobID  score=ready-at unix ms
//	q:{name}:inflight ZSET  member=jobID  score=lease deadline unix ms
//	q:{name}:dead     LIST  jobID, newest last
//	q:{name}:seq      INT   FIFO tiebreak counter
//	q:{name}:job:{id} STR   job JSON
//
// The ready score folds priority and arrival order into one number:
// lower priority sorts first, and within a priority jobs pop FIFO. The
// sequence stays well under 2^40, so the fold is exact in a float64.

const (
	// completedJobTTL keeps finished job records around briefly for
	// inspection unless RemoveOnComplete asked otherwise.
	completedJobTTL = 24 * time.Hour

	prioritySpan = 1 << 40
)

// Client is the enqueue-side handle to the queue backend. Construct one
// per process and pass it to every enqueue call site; it is safe for
// concurrent use.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a queue client over an existing Redis connection.
func NewClient(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{
		rdb:    rdb,
		logger: logger.With("component", "queue_client"),
	}
}

func readyKey(queueName string) string    { return "q:" + queueName + ":ready" }
func delayedKey(queueName string) string  { return "q:" + queueName + ":delayed" }
func inflightKey(queueName string) string { return "q:" + queueName + ":inflight" }
func deadKey(queueName string) string     { return "q:" + queueName + ":dead" }
func seqKey(queueName string) string      { return "q:" + queueName + ":seq" }
func jobKey(queueName, id string) string  { return "q:" + queueName + ":job:" + id }

// enqueueScript atomically creates a job unless a live (waiting or
// delayed) job with the same ID already exists, and places it in the
// ready or delayed set.
//
// KEYS: jobKey, ready, delayed, seq
// ARGV: jobJSON, jobID, readyAtMs, nowMs, priority
// Returns 1 if the job was created, 0 if an existing live job won dedupe.
var enqueueScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
  local state = cjson.decode(existing)['state']
  if state == 'waiting' or state == 'delayed' then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
local readyAt = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
if readyAt > now then
  redis.call('ZADD', KEYS[3], readyAt, ARGV[2])
else
  local seq = redis.call('INCR', KEYS[4])
  redis.call('ZADD', KEYS[2], tonumber(ARGV[5]) * 1099511627776 + seq, ARGV[2])
end
return 1
`)

// Enqueue creates a job on the named queue. The job becomes visible to
// workers after opts.Delay. If opts.JobID names an existing waiting or
// delayed job, that job's handle is returned and nothing is created.
func (c *Client) Enqueue(
	ctx context.Context,
	queueName string,
	jobName string,
	payload map[string]any,
	opts EnqueueOptions,
) (*JobHandle, error) {
	if queueName == "" || jobName == "" {
		return nil, errors.New("queue name and job name are required")
	}

	id := opts.JobID
	if id == "" {
		id = uuid.New().String()
	}

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	now := time.Now().UTC()
	readyAt := now.Add(opts.Delay)

	state := JobStateWaiting
	if opts.Delay > 0 {
		state = JobStateDelayed
	}

	job := &Job{
		ID:               id,
		Queue:            queueName,
		Name:             jobName,
		Payload:          payload,
		Priority:         opts.Priority,
		Attempts:         attempts,
		Backoff:          opts.Backoff,
		State:            state,
		RemoveOnComplete: opts.RemoveOnComplete,
		RemoveOnFail:     opts.RemoveOnFail,
		EnqueuedAt:       now,
		ReadyAt:          readyAt,
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	keys := []string{
		jobKey(queueName, id),
		readyKey(queueName),
		delayedKey(queueName),
		seqKey(queueName),
	}
	created, err := enqueueScript.Run(ctx, c.rdb, keys,
		encoded, id, readyAt.UnixMilli(), now.UnixMilli(), opts.Priority,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	if created == 0 {
		c.logger.Debug("enqueue deduplicated against existing job",
			"queue", queueName,
			"job_name", jobName,
			"job_id", id)
	}

	return &JobHandle{ID: id}, nil
}

// PromoteDelayed moves jobs whose delay has elapsed into the ready set.
// Returns how many were promoted. Workers call this on a short tick.
func (c *Client) PromoteDelayed(ctx context.Context, queueName string, now time.Time, limit int64) (int, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, delayedKey(queueName), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan delayed jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, id := range ids {
		job, err := c.getJob(ctx, queueName, id)
		if err != nil {
			// Orphaned member: the job record is gone, drop the pointer.
			c.rdb.ZRem(ctx, delayedKey(queueName), id)
			continue
		}

		job.State = JobStateWaiting
		if err := c.saveJob(ctx, job); err != nil {
			return promoted, err
		}

		seq, err := c.rdb.Incr(ctx, seqKey(queueName)).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to advance queue sequence: %w", err)
		}

		pipe := c.rdb.TxPipeline()
		pipe.ZRem(ctx, delayedKey(queueName), id)
		pipe.ZAdd(ctx, readyKey(queueName), redis.Z{
			Score:  float64(job.Priority)*prioritySpan + float64(seq),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return promoted, fmt.Errorf("failed to promote delayed job: %w", err)
		}
		promoted++
	}

	return promoted, nil
}

// popScript atomically moves the highest-priority ready job into the
// inflight set, scored by its lease deadline.
//
// KEYS: ready, inflight
// ARGV: lease deadline unix ms
var popScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1], 1)
if #popped == 0 then
  return nil
end
redis.call('ZADD', KEYS[2], tonumber(ARGV[1]), popped[1])
return popped[1]
`)

// pop removes and returns the highest-priority ready job ID, or "" when
// the queue is empty. The popped ID lands in the inflight set under a
// lease deadline; a worker that dies mid-job loses the lease and
// ReclaimExpired returns the job to the ready set.
func (c *Client) pop(ctx context.Context, queueName string, leaseUntil time.Time) (string, error) {
	keys := []string{readyKey(queueName), inflightKey(queueName)}
	res, err := popScript.Run(ctx, c.rdb, keys, leaseUntil.UnixMilli()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop ready job: %w", err)
	}
	id, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected pop script reply type %T", res)
	}
	return id, nil
}

// ReclaimExpired returns jobs whose lease deadline passed to the ready
// set. An expired lease means the worker that popped the job never
// settled it; the attempt it burned already counted, so a job out of
// attempts goes to the dead list instead. Returns how many jobs were
// moved either way.
func (c *Client) ReclaimExpired(ctx context.Context, queueName string, now time.Time, limit int64) (int, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, inflightKey(queueName), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan inflight jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	reclaimed := 0
	for _, id := range ids {
		job, err := c.getJob(ctx, queueName, id)
		if err != nil {
			// Orphaned member: the job record is gone, drop the pointer.
			c.rdb.ZRem(ctx, inflightKey(queueName), id)
			continue
		}

		if job.AttemptsMade >= job.Attempts {
			if err := c.markDead(ctx, job, ErrLeaseExpired); err != nil {
				return reclaimed, err
			}
			reclaimed++
			continue
		}

		job.State = JobStateWaiting
		job.Error = ErrLeaseExpired.Error()
		if err := c.saveJob(ctx, job); err != nil {
			return reclaimed, err
		}

		seq, err := c.rdb.Incr(ctx, seqKey(queueName)).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("failed to advance queue sequence: %w", err)
		}

		pipe := c.rdb.TxPipeline()
		pipe.ZRem(ctx, inflightKey(queueName), id)
		pipe.ZAdd(ctx, readyKey(queueName), redis.Z{
			Score:  float64(job.Priority)*prioritySpan + float64(seq),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("failed to reclaim expired job: %w", err)
		}
		reclaimed++
	}

	return reclaimed, nil
}

// getJob loads a job record.
func (c *Client) getJob(ctx context.Context, queueName, id string) (*Job, error) {
	encoded, err := c.rdb.Get(ctx, jobKey(queueName, id)).Result()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(encoded), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// saveJob writes a job record back.
func (c *Client) saveJob(ctx context.Context, job *Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := c.rdb.Set(ctx, jobKey(job.Queue, job.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// markActive transitions a popped job to active and bumps its attempt count.
func (c *Client) markActive(ctx context.Context, job *Job) error {
	job.State = JobStateActive
	job.AttemptsMade++
	return c.saveJob(ctx, job)
}

// complete finishes a successful job: releases its lease, then either
// removes the record or keeps it briefly for inspection.
func (c *Client) complete(ctx context.Context, job *Job) error {
	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, inflightKey(job.Queue), job.ID)

	if job.RemoveOnComplete {
		pipe.Del(ctx, jobKey(job.Queue, job.ID))
	} else {
		job.State = JobStateCompleted
		encoded, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		pipe.Set(ctx, jobKey(job.Queue, job.ID), encoded, completedJobTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record job completion: %w", err)
	}
	return nil
}

// retry schedules a failed job's next attempt per its backoff policy.
func (c *Client) retry(ctx context.Context, job *Job, jobErr error) error {
	delay := job.Backoff.NextDelay(job.AttemptsMade)
	job.State = JobStateDelayed
	job.Error = jobErr.Error()
	job.ReadyAt = time.Now().UTC().Add(delay)

	if err := c.saveJob(ctx, job); err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, inflightKey(job.Queue), job.ID)
	pipe.ZAdd(ctx, delayedKey(job.Queue), redis.Z{
		Score:  float64(job.ReadyAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return nil
}

// markDead moves a job to the dead list. Dead jobs are kept for
// inspection and never retried automatically.
func (c *Client) markDead(ctx context.Context, job *Job, jobErr error) error {
	job.State = JobStateDead
	job.Error = jobErr.Error()

	if job.RemoveOnFail {
		pipe := c.rdb.TxPipeline()
		pipe.ZRem(ctx, inflightKey(job.Queue), job.ID)
		pipe.Del(ctx, jobKey(job.Queue, job.ID))
		_, err := pipe.Exec(ctx)
		return err
	}

	if err := c.saveJob(ctx, job); err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, inflightKey(job.Queue), job.ID)
	pipe.RPush(ctx, deadKey(job.Queue), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push job to dead list: %w", err)
	}
	return nil
}

// DeadJobs returns up to count jobs from the queue's dead list, oldest
// first, for operational inspection.
func (c *Client) DeadJobs(ctx context.Context, queueName string, count int64) ([]*Job, error) {
	ids, err := c.rdb.LRange(ctx, deadKey(queueName), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead list: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := c.getJob(ctx, queueName, id)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ReadyDepth returns the number of ready jobs on the queue.
func (c *Client) ReadyDepth(ctx context.Context, queueName string) (int64, error) {
	depth, err := c.rdb.ZCard(ctx, readyKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}
