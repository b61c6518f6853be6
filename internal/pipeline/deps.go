package pipeline

import (
	"context"

	"photoferry/internal/batch"
	"photoferry/internal/fetch"
	"photoferry/internal/ledger"
	"photoferry/internal/notifications"
	"photoferry/internal/persist"
	"photoferry/internal/photos"
)

// Fetcher downloads every entry of a batch.
type Fetcher interface {
	FetchAll(ctx context.Context, entries []batch.Entry) ([]fetch.Result, error)
}

// Persister writes one surviving result to the images directory.
type Persister interface {
	Persist(ctx context.Context, result fetch.Result) (persist.Outcome, error)
}

// Photos uploads images and mints them into the library.
type Photos interface {
	UploadAll(ctx context.Context, paths []string, captions map[string]string) ([]photos.Token, error)
	Commit(ctx context.Context, tokens []photos.Token) (photos.CommitResult, error)
}

// Ledger records run history. *ledger.Store satisfies it.
type Ledger interface {
	BeginRun(ctx context.Context, id, command string) error
	FinishRun(ctx context.Context, id string, totals ledger.RunTotals, runErr error) error
	RecordBatch(ctx context.Context, runID string, outcome ledger.BatchOutcome) error
	RecordImage(ctx context.Context, runID string, img ledger.Image) error
	MarkUploaded(ctx context.Context, filenames []string) error
	MarkCommitted(ctx context.Context, filenames []string) error
	UncommittedUploads(ctx context.Context, filenames []string) ([]string, error)
	Captions(ctx context.Context, stems []string) (map[string]string, error)
}

// Deps are the collaborators a Pipeline drives. Photos may be nil for dry
// runs; Ledger, Notifier, and Health default to no-ops.
type Deps struct {
	Fetcher   Fetcher
	Persister Persister
	Photos    Photos
	Ledger    Ledger
	Notifier  notifications.Service
	Health    notifications.Healthcheck
}

type nopLedger struct{}

func (nopLedger) BeginRun(context.Context, string, string) error                   { return nil }
func (nopLedger) FinishRun(context.Context, string, ledger.RunTotals, error) error { return nil }
func (nopLedger) RecordBatch(context.Context, string, ledger.BatchOutcome) error   { return nil }
func (nopLedger) RecordImage(context.Context, string, ledger.Image) error          { return nil }
func (nopLedger) MarkUploaded(context.Context, []string) error                     { return nil }
func (nopLedger) MarkCommitted(context.Context, []string) error                    { return nil }
func (nopLedger) UncommittedUploads(context.Context, []string) ([]string, error)   { return nil, nil }
func (nopLedger) Captions(context.Context, []string) (map[string]string, error)    { return nil, nil }

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

type nopHealth struct{}

func (nopHealth) Success(context.Context) error     { return nil }
func (nopHealth) Fail(context.Context, error) error { return nil }
