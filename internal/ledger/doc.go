// Package ledger records run history in SQLite.
//
// Each non-dry-run invocation writes one runs row, one batches row per batch
// file it touched, and upserts an images row per persisted file. The images
// table remembers captions and the raw-upload and commit times, which lets a
// later upload run recover captions for images persisted by an earlier run and
// warn about images that were uploaded but never committed. Upload tokens are
// never stored.
//
// The queue and images directories stay the source of truth for what is
// pending; the ledger is an audit trail and is safe to delete.
package ledger
