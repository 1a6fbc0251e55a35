// Package store defines the persistence interfaces consumed by the
// pipelines, sweepers, and schedulers, along with shared error types and
// the transaction helper. Concrete implementations live in
// internal/platform/postgres.
//
// All cross-step coordination in this system happens through persisted
// state, never in-memory locks: workers may run in separate processes.
// The one true write contention point, the pending→committed media race,
// is resolved by a conditional update whose affected-row count decides
// the winner.
package store
