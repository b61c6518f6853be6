// Package batch models queued fetch batches and normalizes both on-disk layouts.
//
// A batch file is either a top-level JSON array of entries or the legacy
// object form {"urls": [...], "timestamp": "..."} whose batch-level timestamp
// fills entries that lack one. Parse validates every entry up front and
// returns a Record whose entries carry parsed capture times, so downstream
// stages never see half-formed input.
package batch
