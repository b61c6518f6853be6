package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"photoferry/internal/config"
	"photoferry/internal/services"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Batch statuses.
const (
	BatchArchived    = "archived"
	BatchParseFailed = "parse_failed"
	BatchFailed      = "failed"
)

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open connects to the ledger database named by cfg and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.LedgerPath())
}

// OpenPath connects to the ledger database at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// BeginRun inserts a running row for a new invocation.
func (s *Store) BeginRun(ctx context.Context, id, command string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, started_at, status) VALUES (?, ?, ?, ?)`,
		id, command, s.timestamp(), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunTotals are the counters stored when a run finishes.
type RunTotals struct {
	Batches        int
	ImagesWritten  int
	ImagesUploaded int
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id string, totals RunTotals, runErr error) error {
	status := StatusSucceeded
	var kind, message sql.NullString
	if runErr != nil {
		status = StatusFailed
		kind = sql.NullString{String: services.Kind(runErr), Valid: true}
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, batches = ?, images_written = ?,
            images_uploaded = ?, error_kind = ?, error_message = ?
         WHERE id = ?`,
		s.timestamp(), status, totals.Batches, totals.ImagesWritten, totals.ImagesUploaded, kind, message, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: not found", id)
	}
	return nil
}

// BatchOutcome describes how one batch file fared within a run.
type BatchOutcome struct {
	Path      string
	Status    string
	Entries   int
	Survivors int
	Dropped   int
	Skipped   int
	Err       error
}

// RecordBatch stores a batch outcome for a run.
func (s *Store) RecordBatch(ctx context.Context, runID string, outcome BatchOutcome) error {
	var kind, message sql.NullString
	if outcome.Err != nil {
		kind = sql.NullString{String: services.Kind(outcome.Err), Valid: true}
		message = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (run_id, path, status, entries, survivors, dropped, skipped, error_kind, error_message, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, outcome.Path, outcome.Status, outcome.Entries, outcome.Survivors, outcome.Dropped, outcome.Skipped,
		kind, message, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Image identifies a persisted file.
type Image struct {
	Filename  string
	Stem      string
	Caption   string
	SourceURL string
	BatchPath string
}

// RecordImage upserts a persisted image. Writing a file again under the same
// name clears its upload and commit times.
func (s *Store) RecordImage(ctx context.Context, runID string, img Image) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (filename, stem, caption, source_url, batch_path, run_id, written_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(filename) DO UPDATE SET
            stem = excluded.stem,
            caption = excluded.caption,
            source_url = excluded.source_url,
            batch_path = excluded.batch_path,
            run_id = excluded.run_id,
            written_at = excluded.written_at,
            uploaded_at = NULL,
            committed_at = NULL`,
		img.Filename, img.Stem, img.Caption, nullableString(img.SourceURL), nullableString(img.BatchPath), runID, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert image: %w", err)
	}
	return nil
}

// MarkUploaded stamps uploaded_at for filenames whose raw upload succeeded.
func (s *Store) MarkUploaded(ctx context.Context, filenames []string) error {
	return s.stamp(ctx, "uploaded_at", filenames)
}

// MarkCommitted stamps committed_at for filenames attached by a batchCreate call.
func (s *Store) MarkCommitted(ctx context.Context, filenames []string) error {
	return s.stamp(ctx, "committed_at", filenames)
}

func (s *Store) stamp(ctx context.Context, column string, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	now := s.timestamp()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stamp tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Images persisted before the ledger existed get a minimal row.
	query := fmt.Sprintf(
		`INSERT INTO images (filename, stem, written_at, %[1]s) VALUES (?, ?, ?, ?)
         ON CONFLICT(filename) DO UPDATE SET %[1]s = excluded.%[1]s`, column)
	for _, name := range filenames {
		if _, err := tx.ExecContext(ctx, query, name, stemOf(name), now, now); err != nil {
			return fmt.Errorf("stamp %s for %s: %w", column, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stamp tx: %w", err)
	}
	return nil
}

// UncommittedUploads returns the subset of filenames that were raw-uploaded
// but never committed.
func (s *Store) UncommittedUploads(ctx context.Context, filenames []string) ([]string, error) {
	if len(filenames) == 0 {
		return nil, nil
	}
	query := `SELECT filename FROM images
              WHERE uploaded_at IS NOT NULL AND committed_at IS NULL
              AND filename IN (` + placeholders(len(filenames)) + `)
              ORDER BY filename`
	rows, err := s.db.QueryContext(ctx, query, stringArgs(filenames)...)
	if err != nil {
		return nil, fmt.Errorf("query uncommitted uploads: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan uncommitted upload: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Captions returns recorded non-empty captions for the given stems.
func (s *Store) Captions(ctx context.Context, stems []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(stems) == 0 {
		return out, nil
	}
	query := `SELECT stem, caption FROM images
              WHERE caption != '' AND stem IN (` + placeholders(len(stems)) + `)
              ORDER BY written_at`
	rows, err := s.db.QueryContext(ctx, query, stringArgs(stems)...)
	if err != nil {
		return nil, fmt.Errorf("query captions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stem, caption string
		if err := rows.Scan(&stem, &caption); err != nil {
			return nil, fmt.Errorf("scan caption: %w", err)
		}
		out[stem] = caption
	}
	return out, rows.Err()
}

// Run is a row of run history.
type Run struct {
	ID             string
	Command        string
	Status         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Batches        int
	ImagesWritten  int
	ImagesUploaded int
	ErrorKind      string
	ErrorMessage   string
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, started_at, finished_at, batches, images_written,
                images_uploaded, error_kind, error_message
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			started             string
			finished, kind, msg sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Status, &started, &finished,
			&run.Batches, &run.ImagesWritten, &run.ImagesUploaded, &kind, &msg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		run.ErrorKind = kind.String
		run.ErrorMessage = msg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// BatchesForRun returns the batch outcomes recorded for a run.
func (s *Store) BatchesForRun(ctx context.Context, runID string) ([]BatchOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, status, entries, survivors, dropped, skipped, error_message
         FROM batches WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchOutcome
	for rows.Next() {
		var (
			b   BatchOutcome
			msg sql.NullString
		)
		if err := rows.Scan(&b.Path, &b.Status, &b.Entries, &b.Survivors, &b.Dropped, &b.Skipped, &msg); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if msg.Valid {
			b.Err = errors.New(msg.String)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
