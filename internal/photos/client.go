package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"photoferry/internal/logging"
	"photoferry/internal/services"
)

// DefaultBaseURL is the production Library API endpoint.
const DefaultBaseURL = "https://photoslibrary.googleapis.com"

// HTTPDoer is the authenticated session capability.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Token pairs an upload token with the image it came from.
type Token struct {
	Value    string
	Caption  string
	Filename string
	Path     string
}

// Client uploads and commits media items through one authenticated session.
type Client struct {
	session     HTTPDoer
	baseURL     string
	concurrency int
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithConcurrency bounds in-flight uploads.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient wraps an authenticated session.
func NewClient(session HTTPDoer, opts ...Option) *Client {
	c := &Client{session: session, baseURL: DefaultBaseURL, concurrency: 4}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "photos")
	return c
}

// Upload sends the raw bytes of path and returns its upload token.
func (c *Client) Upload(ctx context.Context, path, caption string) (Token, error) {
	name := filepath.Base(path)
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldFilename, name))
	logger.Info("uploading", logging.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "read", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/uploads", bytes.NewReader(data))
	if err != nil {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "build request", name, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-File-Name", name)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := c.session.Do(req)
	if err != nil {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "post", name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "read response", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "post", fmt.Sprintf("%s: status %s: %s", name, resp.Status, snippet(body)), nil)
	}
	value := strings.TrimSpace(string(body))
	if value == "" {
		return Token{}, services.Wrap(services.ErrUpload, "upload", "post", name+": empty upload token", nil)
	}
	return Token{Value: value, Caption: caption, Filename: name, Path: path}, nil
}

// UploadAll uploads every path concurrently, attaching captions looked up by
// filename stem. A failed upload does not cancel its siblings; every
// successful token is returned in path order together with the first error.
// Callers must not commit when the error is non-nil.
func (c *Client) UploadAll(ctx context.Context, paths []string, captions map[string]string) ([]Token, error) {
	results := make([]Token, len(paths))
	ok := make([]bool, len(paths))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			tok, err := c.Upload(ctx, path, captions[Stem(path)])
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = tok
			ok[i] = true
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	tokens := make([]Token, 0, len(paths))
	for i := range results {
		if ok[i] {
			tokens = append(tokens, results[i])
		}
	}
	return tokens, err
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.session.Do(req)
}
