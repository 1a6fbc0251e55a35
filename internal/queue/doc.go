// Package queue implements named, durable job queues on Redis: priority
// and delayed enqueue with dedupe, per-queue workers with bounded
// concurrency and a shared rate-limit window, retry with backoff into a
// dead list, and cron-style repeatable schedules.
//
// Delivery is at-least-once. The queue never pretends otherwise; handlers
// are expected to be idempotent, and the domain layer's status fields
// decide whether a redelivered job still has work to do.
//
// Clients and workers are explicit dependency-injected objects built once
// at process start. There are no package-level singletons.
package queue
