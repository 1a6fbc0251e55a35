// Package topics drives the curated-topic pipelines: a dispatch fan-out
// that staggers per-topic sync jobs against the external list API's rate
// budget, the sync ingestion itself, and the digest that condenses a
// topic's recent posts into trending topics.
package topics
