// Package generation defines the boundaries between the application core
// and external AI services. Pipelines and schedulers depend on these
// interfaces only; the concrete Gemini-backed implementations live in
// internal/platform/gemini.
//
// Every result type carries a Usage record so callers can account for
// model spend per operation.
package generation
