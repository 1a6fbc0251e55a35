package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/telemetry"
)

// Handler processes one job. Returning nil completes the job; returning
// an error retries it per the job's backoff policy, unless the error is
// wrapped with ErrPermanent, in which case the job goes straight to the
// dead list.
type Handler func(ctx context.Context, job *Job) error

// AttachOptions configures a worker attachment to one queue.
type AttachOptions struct {
	// Concurrency bounds how many jobs run at once. Defaults to 1.
	Concurrency int

	// Limiter, when set, throttles job starts across all concurrent
	// slots of this attachment (globally, via the shared backend).
	Limiter *LimiterOptions

	// PollInterval is how long an idle slot sleeps before checking the
	// queue again. Defaults to 500ms.
	PollInterval time.Duration

	// LeaseDuration bounds how long a popped job may run before the
	// promote loop treats its worker as dead and reclaims it. Must
	// exceed the slowest handler on the queue. Defaults to 15m.
	LeaseDuration time.Duration
}

// attachment binds one queue to its handler map and bounds.
type attachment struct {
	queueName    string
	handlers     map[string]Handler
	concurrency  int
	limiter      *windowLimiter
	pollInterval time.Duration
	lease        time.Duration
}

// Worker pulls jobs from attached queues and dispatches them to
// registered handlers. Handler maps are validated at attach time, so a
// misconfigured process fails at boot rather than at dispatch.
type Worker struct {
	client      *Client
	logger      *slog.Logger
	mu          sync.Mutex
	attachments map[string]*attachment
	started     bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onFailed func(job *Job, err error)
}

// NewWorker creates a worker over the given queue client.
func NewWorker(client *Client, log *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		client:      client,
		logger:      log.With("component", "queue_worker"),
		attachments: make(map[string]*attachment),
		ctx:         ctx,
		cancel:      cancel,
	}
	w.onFailed = func(job *Job, err error) {
		w.logger.Error("job moved to dead list",
			"queue", job.Queue,
			"job_name", job.Name,
			"job_id", job.ID,
			"attempts_made", job.AttemptsMade,
			"error", err)
	}
	return w
}

// SetFailedHandler installs a hook observing jobs that go dead. The
// default hook logs; alerting integrations replace it.
func (w *Worker) SetFailedHandler(fn func(job *Job, err error)) {
	if fn != nil {
		w.onFailed = fn
	}
}

// Attach registers a handler map for one queue. It validates the map
// eagerly: an empty map, a nil handler, or a second attachment to the
// same queue is a configuration error.
func (w *Worker) Attach(queueName string, handlers map[string]Handler, opts AttachOptions) error {
	if queueName == "" {
		return fmt.Errorf("%w: queue name is required", ErrInvalidHandlerMap)
	}
	if len(handlers) == 0 {
		return fmt.Errorf("%w: no handlers registered for queue %q", ErrInvalidHandlerMap, queueName)
	}
	for name, handler := range handlers {
		if name == "" {
			return fmt.Errorf("%w: empty job name on queue %q", ErrInvalidHandlerMap, queueName)
		}
		if handler == nil {
			return fmt.Errorf("%w: nil handler for job %q on queue %q", ErrInvalidHandlerMap, name, queueName)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("cannot attach queue %q after worker start", queueName)
	}
	if _, exists := w.attachments[queueName]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyAttached, queueName)
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	lease := opts.LeaseDuration
	if lease <= 0 {
		lease = 15 * time.Minute
	}

	att := &attachment{
		queueName:    queueName,
		handlers:     handlers,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		lease:        lease,
	}
	if opts.Limiter != nil {
		att.limiter = newWindowLimiter(w.client.rdb, queueName, *opts.Limiter)
	}

	w.attachments[queueName] = att
	return nil
}

// Start launches the processing goroutines for every attachment: one
// delayed-job promoter plus Concurrency pull slots per queue.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker already started")
	}
	if len(w.attachments) == 0 {
		return fmt.Errorf("no queues attached")
	}
	w.started = true

	for _, att := range w.attachments {
		w.wg.Add(1)
		go w.promoteLoop(att)

		for slot := 0; slot < att.concurrency; slot++ {
			w.wg.Add(1)
			go w.pullLoop(att, slot)
		}
	}

	return nil
}

// Stop drains the worker gracefully: no new jobs are pulled, in-flight
// handlers run to completion, then Stop returns.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// promoteLoop moves due delayed jobs into the ready set and reclaims
// expired leases on a short tick.
func (w *Worker) promoteLoop(att *attachment) {
	defer w.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.client.PromoteDelayed(w.ctx, att.queueName, time.Now(), 100); err != nil {
				if w.ctx.Err() == nil {
					w.logger.Error("failed to promote delayed jobs",
						"queue", att.queueName,
						"error", err)
				}
			}
			reclaimed, err := w.client.ReclaimExpired(w.ctx, att.queueName, time.Now(), 100)
			if err != nil {
				if w.ctx.Err() == nil {
					w.logger.Error("failed to reclaim expired leases",
						"queue", att.queueName,
						"error", err)
				}
			} else if reclaimed > 0 {
				w.logger.Warn("reclaimed jobs from dead workers",
					"queue", att.queueName,
					"count", reclaimed)
			}
			if depth, err := w.client.ReadyDepth(w.ctx, att.queueName); err == nil {
				telemetry.QueueDepth.WithLabelValues(att.queueName).Set(float64(depth))
			}
		}
	}
}

// pullLoop is one concurrent slot: it pulls ready jobs, respecting the
// attachment's shared rate window, and dispatches them.
func (w *Worker) pullLoop(att *attachment, slot int) {
	defer w.wg.Done()

	log := w.logger.With("queue", att.queueName, "slot", slot)
	log.Debug("starting worker slot")

	for {
		select {
		case <-w.ctx.Done():
			log.Debug("stopping worker slot")
			return
		default:
		}

		// Consult the limiter only when work is visible; otherwise idle
		// polling would drain the shared window and starve real jobs.
		depth, err := w.client.ReadyDepth(w.ctx, att.queueName)
		if err != nil || depth == 0 {
			w.sleep(att.pollInterval)
			continue
		}

		if att.limiter != nil {
			admitted, err := att.limiter.allow(w.ctx, uuid.New().String())
			if err != nil {
				log.Error("rate limiter check failed", "error", err)
				w.sleep(att.pollInterval)
				continue
			}
			if !admitted {
				w.sleep(att.pollInterval)
				continue
			}
		}

		id, err := w.client.pop(w.ctx, att.queueName, time.Now().Add(att.lease))
		if err != nil {
			if w.ctx.Err() == nil {
				log.Error("failed to pop job", "error", err)
			}
			w.sleep(att.pollInterval)
			continue
		}
		if id == "" {
			w.sleep(att.pollInterval)
			continue
		}

		w.process(att, id, log)
	}
}

// process runs a single popped job through its handler and settles the
// outcome with the queue backend.
func (w *Worker) process(att *attachment, id string, log *slog.Logger) {
	// In-flight jobs finish even if Stop has been called; graceful drain
	// cancels pulling, not processing.
	ctx := context.Background()

	job, err := w.client.getJob(ctx, att.queueName, id)
	if err != nil {
		log.Error("failed to load popped job", "job_id", id, "error", err)
		return
	}

	jobLog := log.With("job_name", job.Name, "job_id", job.ID, "attempt", job.AttemptsMade+1)
	ctx = logger.WithLogger(ctx, jobLog)

	if err := w.client.markActive(ctx, job); err != nil {
		jobLog.Error("failed to mark job active", "error", err)
		return
	}

	handler, ok := att.handlers[job.Name]
	if !ok {
		// Unknown names are wiring bugs; retrying cannot fix them.
		jobLog.Error("no handler registered for job name")
		w.settleFailure(ctx, job, fmt.Errorf("%w: %q", ErrUnknownJobName, job.Name), jobLog)
		return
	}

	jobLog.Info("processing job")
	start := time.Now()
	handlerErr := handler(ctx, job)
	telemetry.JobDuration.WithLabelValues(job.Queue, job.Name).Observe(time.Since(start).Seconds())

	if handlerErr == nil {
		if err := w.client.complete(ctx, job); err != nil {
			jobLog.Error("failed to record job completion", "error", err)
		}
		telemetry.JobsProcessed.WithLabelValues(job.Queue, "completed").Inc()
		jobLog.Info("job completed")
		return
	}

	w.settleFailure(ctx, job, handlerErr, jobLog)
}

// settleFailure decides between retry and dead for a failed job.
func (w *Worker) settleFailure(ctx context.Context, job *Job, handlerErr error, log *slog.Logger) {
	if !IsPermanent(handlerErr) && job.AttemptsMade < job.Attempts {
		if err := w.client.retry(ctx, job, handlerErr); err != nil {
			log.Error("failed to schedule job retry", "error", err)
			return
		}
		telemetry.JobsProcessed.WithLabelValues(job.Queue, "retried").Inc()
		log.Warn("job failed, retry scheduled",
			"error", handlerErr,
			"attempts_remaining", job.Attempts-job.AttemptsMade)
		return
	}

	if err := w.client.markDead(ctx, job, handlerErr); err != nil {
		log.Error("failed to mark job dead", "error", err)
		return
	}
	telemetry.JobsProcessed.WithLabelValues(job.Queue, "dead").Inc()
	w.onFailed(job, handlerErr)
}

// sleep pauses the slot without outliving Stop.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}
