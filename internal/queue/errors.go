package queue

import (
	"errors"
	"fmt"
)

// Common errors returned by the queue package
var (
	// ErrPermanent marks a handler failure as non-retryable. Handlers
	// wrap domain-not-found and other configuration-class failures with
	// it so the worker sends the job straight to the dead list instead
	// of burning retry attempts.
	ErrPermanent = errors.New("permanent job failure")

	// ErrUnknownJobName is returned when a job's name has no registered
	// handler. This is a configuration error, not a transient one; the
	// job is recorded dead without retries.
	ErrUnknownJobName = fmt.Errorf("%w: unknown job name", ErrPermanent)

	// ErrJobNotFound is returned when a job record is missing from the
	// backend.
	ErrJobNotFound = errors.New("job not found")

	// ErrLeaseExpired records why a job left the inflight set without its
	// worker settling it: the worker crashed or stalled past the lease
	// deadline.
	ErrLeaseExpired = errors.New("job lease expired")

	// ErrInvalidHandlerMap is returned by Attach when the handler map is
	// empty or contains a nil handler.
	ErrInvalidHandlerMap = errors.New("invalid handler map")

	// ErrAlreadyAttached is returned by Attach when the queue already
	// has a worker attachment.
	ErrAlreadyAttached = errors.New("queue already attached")

	// ErrInvalidCronPattern is returned when a repeatable schedule's
	// cron expression cannot be parsed.
	ErrInvalidCronPattern = errors.New("invalid cron pattern")
)

// Permanent wraps err so the worker will not retry it. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
