// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, batch paths, and stage names
//     for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the fetch/write/parse/upload/commit taxonomy the orchestrator uses
//     to decide what aborts and what is isolated.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error classification, observability) stays uniform across the pipeline.
package services
