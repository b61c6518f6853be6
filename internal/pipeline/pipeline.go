package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"photoferry/internal/batch"
	"photoferry/internal/config"
	"photoferry/internal/ledger"
	"photoferry/internal/logging"
	"photoferry/internal/notifications"
	"photoferry/internal/services"
)

// ErrLocked reports that another non-dry run holds the run lock.
var ErrLocked = errors.New("another photoferry run is active")

// Options control one Process call.
type Options struct {
	DryRun bool
}

// Pipeline runs the batch and upload stages against one configuration.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

// New constructs a Pipeline. Missing optional collaborators become no-ops.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	if deps.Fetcher == nil || deps.Persister == nil {
		return nil, errors.New("pipeline requires fetcher and persister")
	}
	if deps.Ledger == nil {
		deps.Ledger = nopLedger{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Health == nil {
		deps.Health = nopHealth{}
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Process runs every batch in the queue directory and, unless this is a dry
// run, uploads the images directory afterwards.
func (p *Pipeline) Process(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), DryRun: opts.DryRun}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if !opts.DryRun {
		if p.deps.Photos == nil {
			return summary, services.Wrap(services.ErrConfiguration, "pipeline", "process", "photo library client required", nil)
		}
		unlock, err := p.acquire()
		if err != nil {
			return summary, err
		}
		defer unlock()
		p.beginRun(ctx, summary.RunID, "process")
	}

	logger.Info("run started",
		logging.String("queue_dir", p.cfg.Paths.QueueDir),
		logging.String("images_dir", p.cfg.Paths.ImagesDir),
		logging.Bool("dry_run", opts.DryRun),
	)

	captions, err := p.processBatches(ctx, opts, &summary)
	if err == nil && !opts.DryRun {
		summary.Upload, err = p.upload(ctx, captions)
	}

	if opts.DryRun {
		logger.Info("dry run complete",
			logging.Int("batches", len(summary.Batches)),
			logging.Int("rejected", len(summary.Rejected)),
		)
		return summary, err
	}

	p.finishRun(ctx, summary, err)
	if err != nil {
		return summary, err
	}
	if pubErr := p.deps.Notifier.Publish(ctx, notifications.EventProcessCompleted, notifications.Payload{
		"batches":  len(summary.Batches),
		"written":  summary.Written(),
		"uploaded": summary.Upload.Minted,
	}); pubErr != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed", logging.Error(pubErr))
	}
	logger.Info("run complete",
		logging.Int("batches", len(summary.Batches)),
		logging.Int("rejected", len(summary.Rejected)),
		logging.Int("written", summary.Written()),
		logging.Int("minted", summary.Upload.Minted),
	)
	return summary, nil
}

// Upload sends whatever sits in the images directory, without processing the
// queue. Captions fall back to those recorded in the ledger.
func (p *Pipeline) Upload(ctx context.Context, captions map[string]string) (UploadSummary, error) {
	if p.deps.Photos == nil {
		return UploadSummary{}, services.Wrap(services.ErrConfiguration, "pipeline", "upload", "photo library client required", nil)
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)

	unlock, err := p.acquire()
	if err != nil {
		return UploadSummary{}, err
	}
	defer unlock()
	p.beginRun(ctx, runID, "upload")

	result, err := p.upload(ctx, captions)
	p.finishRun(ctx, Summary{RunID: runID, Upload: result}, err)
	if err != nil {
		return result, err
	}
	if pubErr := p.deps.Notifier.Publish(ctx, notifications.EventUploadCompleted, notifications.Payload{
		"uploaded": result.Minted,
		"failed":   result.ItemsRejected,
	}); pubErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "notification failed", "notify_failed", logging.Error(pubErr))
	}
	return result, nil
}

func (p *Pipeline) processBatches(ctx context.Context, opts Options, summary *Summary) (map[string]string, error) {
	ctx = services.WithStage(ctx, "discover")
	paths, err := batch.Discover(p.cfg.Paths.QueueDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "list queue", p.cfg.Paths.QueueDir, err)
	}
	logger := logging.WithContext(ctx, p.logger)
	if len(paths) == 0 {
		logger.Info("no batch files found")
		return map[string]string{}, nil
	}
	logger.Info("batches discovered", logging.Int("count", len(paths)))

	claims := newStemClaims()
	runs := make([]batchRun, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Go(func() {
			runs[i] = p.processBatch(ctx, i, path, opts, claims)
		})
	}
	wg.Wait()

	captions := p.reconcile(services.WithStage(ctx, "reconcile"), runs, claims, opts)

	var errs []error
	for _, run := range runs {
		result := run.summary
		switch {
		case result.Err == nil:
			summary.Batches = append(summary.Batches, result)
		case errors.Is(result.Err, services.ErrBatchParse):
			summary.Rejected = append(summary.Rejected, result)
		default:
			summary.Batches = append(summary.Batches, result)
			errs = append(errs, result.Err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logging.ErrorWithContext(logger, "batch failures, skipping upload", "batch_failed",
			logging.Int("failed", len(errs)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "failed batches stay in the queue; rerun after fixing the cause"),
		)
		return captions, err
	}
	return captions, nil
}

// reconcile walks batches in discovery order once all of them finished. Only
// the batch holding a stem's claim contributes its caption and ledger row; a
// stem persisted by several batches is reported once.
func (p *Pipeline) reconcile(ctx context.Context, runs []batchRun, claims *stemClaims, opts Options) map[string]string {
	runID, _ := services.RunIDFromContext(ctx)
	logger := logging.WithContext(ctx, p.logger)
	captions := make(map[string]string)
	owners := make(map[string][]int)
	var stems []string
	for i, run := range runs {
		batchStems := make([]string, 0, len(run.images)+len(run.superseded))
		for _, img := range run.images {
			batchStems = append(batchStems, img.stem)
		}
		batchStems = append(batchStems, run.superseded...)
		for _, stem := range batchStems {
			if _, seen := owners[stem]; !seen {
				stems = append(stems, stem)
			}
			owners[stem] = append(owners[stem], i)
		}
	}

	for i := range runs {
		run := &runs[i]
		batchCtx := services.WithBatch(ctx, run.summary.Path)
		for _, img := range run.images {
			if !claims.holder(img.stem, i) {
				run.summary.Dropped++
				continue
			}
			captions[img.stem] = img.caption
			if opts.DryRun {
				continue
			}
			run.summary.Written++
			if err := p.deps.Ledger.RecordImage(batchCtx, runID, img.record); err != nil {
				logging.WarnWithContext(logger, "ledger write failed", "ledger_failed",
					logging.String(logging.FieldFilename, img.record.Filename),
					logging.Error(err),
				)
			}
		}
		if !opts.DryRun && run.summary.Err == nil && run.summary.Archived != "" {
			if err := p.deps.Ledger.RecordBatch(batchCtx, runID, run.summary.outcome(ledger.BatchArchived)); err != nil {
				logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(err))
			}
		}
	}

	for _, stem := range stems {
		indexes := owners[stem]
		if len(indexes) < 2 {
			continue
		}
		var kept string
		others := make([]string, 0, len(indexes)-1)
		for _, i := range indexes {
			name := filepath.Base(runs[i].summary.Path)
			if claims.holder(stem, i) {
				kept = name
				continue
			}
			others = append(others, name)
		}
		logging.WarnWithContext(logger, "image name shared across batches", "stem_collision",
			logging.String("stem", stem),
			logging.String("kept_batch", kept),
			logging.String("dropped_batches", strings.Join(others, ",")),
			logging.String(logging.FieldImpact, "only the earliest capture is kept; the other deliveries are dropped"),
		)
	}
	return captions
}

func (p *Pipeline) acquire() (func(), error) {
	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "ensure directories", "", err)
	}
	lock := flock.New(p.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, p.cfg.LockPath())
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}, nil
}

func (p *Pipeline) beginRun(ctx context.Context, runID, command string) {
	if err := p.deps.Ledger.BeginRun(ctx, runID, command); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "ledger write failed", "ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func (p *Pipeline) finishRun(ctx context.Context, summary Summary, runErr error) {
	logger := logging.WithContext(ctx, p.logger)
	if err := p.deps.Ledger.FinishRun(ctx, summary.RunID, summary.totals(), runErr); err != nil {
		logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(err))
	}

	if runErr == nil {
		if err := p.deps.Health.Success(ctx); err != nil {
			logging.WarnWithContext(logger, "health ping failed", "health_ping_failed", logging.Error(err))
		}
		return
	}
	if err := p.deps.Health.Fail(ctx, runErr); err != nil {
		logging.WarnWithContext(logger, "health ping failed", "health_ping_failed", logging.Error(err))
	}
	if err := p.deps.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"context": services.Kind(runErr),
		"error":   runErr,
	}); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed", logging.Error(err))
	}
}
