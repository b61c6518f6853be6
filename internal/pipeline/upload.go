package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"photoferry/internal/archive"
	"photoferry/internal/fileutil"
	"photoferry/internal/logging"
	"photoferry/internal/photos"
	"photoferry/internal/services"
)

// upload sends every visible file in the images directory, mints the tokens
// in one commit, and archives the minted files. Nothing moves unless the
// commit succeeded, and items the commit reported as failed stay behind.
func (p *Pipeline) upload(ctx context.Context, captions map[string]string) (UploadSummary, error) {
	ctx = services.WithStage(ctx, "upload")
	logger := logging.WithContext(ctx, p.logger)
	var summary UploadSummary

	paths, err := fileutil.ListVisibleFiles(p.cfg.Paths.ImagesDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return summary, services.Wrap(services.ErrUpload, "upload", "list images", p.cfg.Paths.ImagesDir, err)
	}
	summary.Found = len(paths)
	if len(paths) == 0 {
		logger.Info("no images to upload")
		return summary, nil
	}

	filenames := make([]string, len(paths))
	for i, path := range paths {
		filenames[i] = filepath.Base(path)
	}
	p.warnUncommitted(ctx, filenames)

	tokens, err := p.deps.Photos.UploadAll(ctx, paths, p.resolveCaptions(ctx, paths, captions))
	summary.Uploaded = len(tokens)
	if markErr := p.deps.Ledger.MarkUploaded(ctx, tokenFilenames(tokens)); markErr != nil {
		logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(markErr))
	}
	if err != nil {
		logging.ErrorWithContext(logger, "upload failed, skipping mint", "upload_failed",
			logging.Int("uploaded", len(tokens)),
			logging.Int("images", len(paths)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "images stay in place; rerun upload once the cause is fixed"),
		)
		return summary, err
	}

	commitCtx := services.WithStage(ctx, "commit")
	result, err := p.deps.Photos.Commit(commitCtx, tokens)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(commitCtx, p.logger), "mint failed", "commit_failed",
			logging.Int("tokens", len(tokens)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "images stay in place; a retry re-uploads them"),
		)
		return summary, err
	}
	rejected := result.Rejected()
	minted := make([]photos.Token, 0, len(tokens))
	for _, tok := range tokens {
		if !rejected[tok.Filename] {
			minted = append(minted, tok)
		}
	}
	if markErr := p.deps.Ledger.MarkCommitted(commitCtx, tokenFilenames(minted)); markErr != nil {
		logging.WarnWithContext(logger, "ledger write failed", "ledger_failed", logging.Error(markErr))
	}
	summary.ItemsRejected = len(tokens) - len(minted)
	summary.Minted = len(minted)

	archiveCtx := services.WithStage(ctx, "archive")
	uploaded := make([]string, len(minted))
	for i, tok := range minted {
		uploaded[i] = tok.Path
	}
	summary.Archived, err = archive.ArchiveUploaded(uploaded, p.cfg.ImagesDoneDir())
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(archiveCtx, p.logger), "archive failed", "archive_failed",
			logging.Int("moved", len(summary.Archived)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "move the remaining minted images into the done directory by hand"),
		)
		return summary, err
	}
	logging.WithContext(archiveCtx, p.logger).Info("uploaded images archived",
		logging.Int("archived", len(summary.Archived)),
		logging.Int("minted", summary.Minted),
	)
	return summary, nil
}

func (p *Pipeline) warnUncommitted(ctx context.Context, filenames []string) {
	logger := logging.WithContext(ctx, p.logger)
	pending, err := p.deps.Ledger.UncommittedUploads(ctx, filenames)
	if err != nil {
		logging.WarnWithContext(logger, "ledger read failed", "ledger_failed", logging.Error(err))
		return
	}
	for _, name := range pending {
		logging.WarnWithContext(logger, "image was uploaded before but never minted", "uncommitted_upload",
			logging.String(logging.FieldFilename, name),
			logging.String(logging.FieldImpact, "uploading again may create a duplicate if the earlier token is ever committed"),
		)
	}
}

// resolveCaptions fills stems missing from the in-memory map with captions
// recorded in the ledger.
func (p *Pipeline) resolveCaptions(ctx context.Context, paths []string, captions map[string]string) map[string]string {
	merged := make(map[string]string, len(paths))
	var missing []string
	for _, path := range paths {
		stem := photos.Stem(path)
		if caption, ok := captions[stem]; ok {
			merged[stem] = caption
			continue
		}
		missing = append(missing, stem)
	}
	if len(missing) == 0 {
		return merged
	}
	recorded, err := p.deps.Ledger.Captions(ctx, missing)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "ledger read failed", "ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "images uploaded without captions"),
		)
		return merged
	}
	for stem, caption := range recorded {
		merged[stem] = caption
	}
	return merged
}

func tokenFilenames(tokens []photos.Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Filename
	}
	return out
}
