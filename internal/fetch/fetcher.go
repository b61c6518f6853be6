// Package fetch downloads queued entries and resolves the filename of the
// asset each view link redirects to.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"photoferry/internal/batch"
	"photoferry/internal/logging"
	"photoferry/internal/services"
	"photoferry/internal/textutil"
)

// HTTPDoer is the subset of *http.Client the fetcher needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one downloaded entry. Payload is nil in dry-run mode.
type Result struct {
	Index     int
	Filename  string
	Caption   string
	Timestamp string
	TakenAt   time.Time
	MessageID string
	Payload   []byte
	SourceURL string
	FinalURL  string
}

// Stem returns the filename without its extension.
func (r Result) Stem() string {
	return Stem(r.Filename)
}

// Stem strips the final extension from name.
func Stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Fetcher retrieves entries over a shared HTTP client.
type Fetcher struct {
	client        HTTPDoer
	dryRun        bool
	redirectKey   string
	redirectValue string
	userAgent     string
	concurrency   int
	logger        *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithDryRun discards payloads after reading them.
func WithDryRun(dryRun bool) Option {
	return func(f *Fetcher) { f.dryRun = dryRun }
}

// WithRedirectParam sets the query parameter that makes a view link redirect
// to its backing asset. An empty key disables it.
func WithRedirectParam(key, value string) Option {
	return func(f *Fetcher) {
		f.redirectKey = key
		f.redirectValue = value
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithConcurrency bounds in-flight downloads per FetchAll call.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithLogger sets the logger used for per-download records.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// New constructs a Fetcher. A nil client uses http.DefaultClient.
func New(client HTTPDoer, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:        client,
		redirectKey:   "d",
		redirectValue: "t",
		concurrency:   8,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "fetcher")
	return f
}

// DryRun reports whether payloads are discarded.
func (f *Fetcher) DryRun() bool {
	return f.dryRun
}

// Fetch downloads one entry, following redirects, and derives the filename
// from the last path segment of the final URL.
func (f *Fetcher) Fetch(ctx context.Context, index int, entry batch.Entry) (Result, error) {
	target, err := f.requestURL(entry.URL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "build request", entry.URL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "build request", entry.URL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "get", entry.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "get", fmt.Sprintf("%s returned %s", entry.URL, resp.Status), nil)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	filename, err := filenameFromURL(finalURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "resolve filename", entry.URL, err)
	}

	var (
		payload []byte
		size    int64
	)
	if f.dryRun {
		size, err = io.Copy(io.Discard, resp.Body)
	} else {
		payload, err = io.ReadAll(resp.Body)
		size = int64(len(payload))
	}
	if err != nil {
		return Result{}, services.Wrap(services.ErrFetch, "fetch", "read body", entry.URL, err)
	}

	logging.WithContext(ctx, f.logger).Info("downloaded",
		logging.String(logging.FieldFilename, filename),
		logging.String(logging.FieldURL, entry.URL),
		logging.Int64("bytes", size),
		logging.Bool("dry_run", f.dryRun),
	)

	return Result{
		Index:     index,
		Filename:  filename,
		Caption:   entry.Caption,
		Timestamp: entry.Timestamp,
		TakenAt:   entry.TakenAt,
		MessageID: entry.MessageID,
		Payload:   payload,
		SourceURL: entry.URL,
		FinalURL:  finalURL.String(),
	}, nil
}

// FetchAll downloads every entry concurrently. Results are indexed by entry
// position regardless of completion order. The first failure cancels the
// remaining downloads and is returned.
func (f *Fetcher) FetchAll(ctx context.Context, entries []batch.Entry) ([]Result, error) {
	results := make([]Result, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			result, err := f.Fetch(gctx, i, entry)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *Fetcher) requestURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if f.redirectKey != "" {
		// Appended verbatim: signed links break if existing parameters are
		// reordered or re-escaped.
		param := url.QueryEscape(f.redirectKey) + "=" + url.QueryEscape(f.redirectValue)
		if parsed.RawQuery == "" {
			parsed.RawQuery = param
		} else {
			parsed.RawQuery += "&" + param
		}
	}
	return parsed.String(), nil
}

func filenameFromURL(u *url.URL) (string, error) {
	name := textutil.SanitizeFileName(path.Base(u.Path))
	if name == "" || name == "." || name == "-" {
		return "", fmt.Errorf("final url %q has no filename", u.String())
	}
	if strings.HasPrefix(name, ".") || Stem(name) == "" {
		return "", fmt.Errorf("final url %q resolves to unusable filename %q", u.String(), name)
	}
	return name, nil
}
