// Package persist writes surviving fetch results into the images directory
// with their capture time embedded.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"photoferry/internal/batch"
	"photoferry/internal/exifmeta"
	"photoferry/internal/fetch"
	"photoferry/internal/fileutil"
	"photoferry/internal/logging"
	"photoferry/internal/services"
)

// ErrUnrecognizedFormat marks a payload that is not a recognizable image.
// Nothing is written for it.
var ErrUnrecognizedFormat = errors.New("unrecognized image format")

// Outcome describes what Persist did for one result.
type Outcome struct {
	Path     string
	Stem     string
	Kind     exifmeta.Kind
	Embedded bool
	Skipped  bool
	DryRun   bool
}

// Persister writes images under a single directory.
type Persister struct {
	dir         string
	loc         *time.Location
	embedder    exifmeta.Embedder
	sniffer     exifmeta.Sniffer
	fallbackExt string
	mode        os.FileMode
	logger      *slog.Logger
}

// Option customizes a Persister.
type Option func(*Persister)

// WithFallbackExtension names the extension reported when sniffing fails.
func WithFallbackExtension(ext string) Option {
	return func(p *Persister) {
		if ext != "" {
			p.fallbackExt = ext
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) { p.logger = logger }
}

// New constructs a Persister. Nil embedder or sniffer select the defaults;
// a nil location means UTC.
func New(dir string, loc *time.Location, embedder exifmeta.Embedder, sniffer exifmeta.Sniffer, opts ...Option) *Persister {
	if loc == nil {
		loc = time.UTC
	}
	if embedder == nil {
		embedder = exifmeta.NewEmbedder()
	}
	if sniffer == nil {
		sniffer = exifmeta.NewSniffer()
	}
	p := &Persister{
		dir:         dir,
		loc:         loc,
		embedder:    embedder,
		sniffer:     sniffer,
		fallbackExt: "png",
		mode:        0o644,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "persister")
	return p
}

// Dir returns the destination directory.
func (p *Persister) Dir() string {
	return p.dir
}

// Persist writes one result as <stem>.<sniffed ext>. A nil payload is the
// dry-run path and touches nothing on disk.
func (p *Persister) Persist(ctx context.Context, result fetch.Result) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldFilename, result.Filename))
	stem := result.Stem()
	outcome := Outcome{Stem: stem}

	takenAt := result.TakenAt
	if takenAt.IsZero() {
		parsed, err := batch.ParseTimestamp(result.Timestamp, p.loc)
		if err != nil {
			return outcome, services.Wrap(services.ErrWrite, "persist", "parse timestamp", result.Filename, err)
		}
		takenAt = parsed
	}
	localTime := batch.ExifDateTime(takenAt)
	offset := batch.ExifOffset(takenAt)

	if result.Payload == nil {
		outcome.DryRun = true
		outcome.Path = filepath.Join(p.dir, stem+"."+p.fallbackExt)
		logger.Info("would write",
			logging.String("stem", stem),
			logging.String("fallback_extension", p.fallbackExt),
			logging.String("capture_time", localTime+" "+offset),
		)
		return outcome, nil
	}

	kind, ok := p.sniffer.Sniff(result.Payload)
	if !ok {
		outcome.Skipped = true
		logging.WarnWithContext(logger, "unknown format, not writing file", "unrecognized_format",
			logging.String(logging.FieldURL, result.SourceURL),
			logging.String("fallback_extension", p.fallbackExt),
			logging.String(logging.FieldImpact, "image skipped; batch still archived"),
		)
		return outcome, services.Wrap(services.ErrWrite, "persist", "sniff", result.Filename, ErrUnrecognizedFormat)
	}
	outcome.Kind = kind
	outcome.Path = filepath.Join(p.dir, stem+"."+kind.Extension)

	data, err := p.embedder.Embed(result.Payload, kind, localTime, offset)
	switch {
	case err == nil:
		outcome.Embedded = true
	case errors.Is(err, exifmeta.ErrUnsupportedKind):
		data = result.Payload
		logging.WarnWithContext(logger, "capture time not embedded", "exif_unsupported",
			logging.String("mime", kind.MIME),
			logging.String(logging.FieldImpact, "image stored without capture time"),
		)
	default:
		return outcome, services.Wrap(services.ErrWrite, "persist", "embed", result.Filename, err)
	}

	if err := fileutil.WriteFileAtomic(outcome.Path, data, p.mode); err != nil {
		return outcome, services.Wrap(services.ErrWrite, "persist", "write", outcome.Path, err)
	}
	logger.Info("image written",
		logging.String("path", outcome.Path),
		logging.String("capture_time", localTime+" "+offset),
		logging.Bool("embedded", outcome.Embedded),
	)
	return outcome, nil
}

// IsSkip reports whether err only records an unrecognized-format skip.
func IsSkip(err error) bool {
	return errors.Is(err, ErrUnrecognizedFormat)
}

func (o Outcome) String() string {
	switch {
	case o.DryRun:
		return fmt.Sprintf("%s (dry run)", o.Stem)
	case o.Skipped:
		return fmt.Sprintf("%s (skipped)", o.Stem)
	default:
		return o.Path
	}
}
