// Package pipeline contains the queue handlers that drive AI generation:
// the two-stage actor avatar pipeline, narration audio with its chained
// video render, and per-page illustrations.
//
// Handlers distinguish failure classes for the queue: missing or invalid
// payload references are wrapped permanent (retrying cannot conjure a
// deleted actor), while model and storage failures stay retryable.
package pipeline
