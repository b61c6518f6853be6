package pipeline

import "photoferry/internal/ledger"

// BatchSummary describes one batch file's sub-pipeline.
type BatchSummary struct {
	Path      string
	Archived  string
	Entries   int
	Survivors int
	Dropped   int
	Written   int
	Skipped   int
	Err       error
}

func (b BatchSummary) outcome(status string) ledger.BatchOutcome {
	return ledger.BatchOutcome{
		Path:      b.Path,
		Status:    status,
		Entries:   b.Entries,
		Survivors: b.Survivors,
		Dropped:   b.Dropped,
		Skipped:   b.Skipped,
		Err:       b.Err,
	}
}

// UploadSummary describes the upload, mint, and archive stages.
type UploadSummary struct {
	Found         int
	Uploaded      int
	Minted        int
	ItemsRejected int
	Archived      []string
}

// Summary reports what one Process call did.
type Summary struct {
	RunID    string
	DryRun   bool
	Batches  []BatchSummary
	Rejected []BatchSummary
	Upload   UploadSummary
}

// Written counts images persisted across all batches.
func (s Summary) Written() int {
	n := 0
	for _, b := range s.Batches {
		n += b.Written
	}
	return n
}

func (s Summary) totals() ledger.RunTotals {
	return ledger.RunTotals{
		Batches:        len(s.Batches) + len(s.Rejected),
		ImagesWritten:  s.Written(),
		ImagesUploaded: s.Upload.Minted,
	}
}
