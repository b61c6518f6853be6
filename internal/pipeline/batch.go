package pipeline

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"photoferry/internal/archive"
	"photoferry/internal/batch"
	"photoferry/internal/dedup"
	"photoferry/internal/fetch"
	"photoferry/internal/ledger"
	"photoferry/internal/logging"
	"photoferry/internal/notifications"
	"photoferry/internal/persist"
	"photoferry/internal/services"
)

// batchRun is what one batch goroutine hands back to processBatches.
type batchRun struct {
	summary    BatchSummary
	images     []batchImage
	superseded []string // stems another batch held with an earlier capture
}

// batchImage is one survivor that persisted, or would persist in a dry run.
type batchImage struct {
	stem    string
	caption string
	record  ledger.Image
}

// processBatch runs parse, fetch, dedup, persist, and finalize for one batch
// file. Writes go through claims so a stem shared with another batch of the
// same run resolves the same way every time.
func (p *Pipeline) processBatch(ctx context.Context, index int, path string, opts Options, claims *stemClaims) batchRun {
	ctx = services.WithBatch(ctx, path)
	runID, _ := services.RunIDFromContext(ctx)
	run := batchRun{summary: BatchSummary{Path: path}}

	record, err := batch.Load(path, p.cfg.Location())
	if err != nil {
		run.summary.Err = err
		p.rejectBatch(ctx, runID, run.summary, opts)
		return run
	}
	run.summary.Entries = len(record.Entries)

	fetchCtx := services.WithStage(ctx, "fetch")
	results, err := p.deps.Fetcher.FetchAll(fetchCtx, record.Entries)
	if err != nil {
		run.summary = p.failBatch(fetchCtx, runID, run.summary, err, opts)
		return run
	}
	if opts.DryRun {
		for i := range results {
			results[i].Payload = nil
		}
	}

	table := dedup.Build(results)
	run.summary.Survivors = table.Len()
	run.summary.Dropped = len(table.Dropped())
	dedupLogger := logging.WithContext(services.WithStage(ctx, "dedup"), p.logger)
	for _, dropped := range table.Dropped() {
		kept, _ := table.Lookup(dropped.Stem())
		dedupLogger.Info("duplicate dropped",
			logging.String(logging.FieldFilename, dropped.Filename),
			logging.String("dropped_timestamp", dropped.Timestamp),
			logging.String("kept_timestamp", kept.Timestamp),
		)
	}

	persistCtx := services.WithStage(ctx, "persist")
	items, err := p.persistSurvivors(persistCtx, index, table.Survivors(), claims)
	if err != nil {
		run.summary = p.failBatch(persistCtx, runID, run.summary, err, opts)
		return run
	}
	for _, item := range items {
		switch {
		case item.skipped:
			run.summary.Skipped++
		case item.superseded:
			run.summary.Dropped++
			run.superseded = append(run.superseded, item.result.Stem())
		default:
			run.images = append(run.images, batchImage{
				stem:    item.outcome.Stem,
				caption: item.result.Caption,
				record: ledger.Image{
					Filename:  filepath.Base(item.outcome.Path),
					Stem:      item.outcome.Stem,
					Caption:   item.result.Caption,
					SourceURL: item.result.SourceURL,
					BatchPath: path,
				},
			})
		}
	}

	finalizeCtx := services.WithStage(ctx, "finalize")
	logger := logging.WithContext(finalizeCtx, p.logger)
	if opts.DryRun {
		logger.Info("would archive batch",
			logging.Int("survivors", run.summary.Survivors),
			logging.Int("dropped", run.summary.Dropped),
		)
		return run
	}

	archived, err := archive.FinalizeBatch(path, p.cfg.QueueDoneDir())
	if err != nil {
		run.summary = p.failBatch(finalizeCtx, runID, run.summary, err, opts)
		return run
	}
	run.summary.Archived = archived
	logger.Info("batch archived",
		logging.String("archived", archived),
		logging.Int("entries", run.summary.Entries),
		logging.Int("persisted", len(run.images)),
		logging.Int("skipped", run.summary.Skipped),
		logging.Int("dropped", run.summary.Dropped),
	)
	return run
}

type persisted struct {
	result     fetch.Result
	outcome    persist.Outcome
	skipped    bool
	superseded bool
}

// persistSurvivors writes every survivor concurrently. An unrecognized format
// is a skip; any other failure cancels the remaining writes.
func (p *Pipeline) persistSurvivors(ctx context.Context, index int, survivors []fetch.Result, claims *stemClaims) ([]persisted, error) {
	out := make([]persisted, len(survivors))
	g, gctx := errgroup.WithContext(ctx)
	for i, result := range survivors {
		g.Go(func() error {
			item := persisted{result: result}
			candidate := claim{batch: index, takenAt: result.TakenAt}
			claimed, err := claims.write(result.Stem(), candidate, func() (string, error) {
				outcome, err := p.deps.Persister.Persist(gctx, result)
				item.outcome = outcome
				if err != nil || outcome.DryRun {
					return "", err
				}
				return outcome.Path, nil
			})
			switch {
			case persist.IsSkip(err):
				item.skipped = true
			case err != nil:
				return err
			case !claimed.written:
				item.superseded = true
			}
			out[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) rejectBatch(ctx context.Context, runID string, summary BatchSummary, opts Options) {
	logger := logging.WithContext(services.WithStage(ctx, "parse"), p.logger)
	logging.ErrorWithContext(logger, "batch rejected", "batch_parse_failed",
		logging.Error(summary.Err),
		logging.String(logging.FieldErrorHint, "fix the batch file; it stays in the queue"),
	)
	if opts.DryRun {
		return
	}
	if err := p.deps.Ledger.RecordBatch(ctx, runID, summary.outcome(ledger.BatchParseFailed)); err != nil {
		logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(err))
	}
	if err := p.deps.Notifier.Publish(ctx, notifications.EventBatchRejected, notifications.Payload{
		"batch": filepath.Base(summary.Path),
		"error": summary.Err,
	}); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed", logging.Error(err))
	}
}

func (p *Pipeline) failBatch(ctx context.Context, runID string, summary BatchSummary, err error, opts Options) BatchSummary {
	summary.Err = err
	logger := logging.WithContext(ctx, p.logger)
	logging.ErrorWithContext(logger, "batch failed", "batch_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the batch file stays in the queue and is retried on the next run"),
	)
	if !opts.DryRun {
		if recErr := p.deps.Ledger.RecordBatch(ctx, runID, summary.outcome(ledger.BatchFailed)); recErr != nil {
			logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(recErr))
		}
	}
	return summary
}
