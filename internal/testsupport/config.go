package testsupport

import (
	"path/filepath"
	"testing"

	"photoferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.QueueDir = filepath.Join(base, "queue")
	cfgVal.Paths.ImagesDir = filepath.Join(base, "images")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Photos.CredentialsFile = filepath.Join(base, "client.json")
	cfgVal.Photos.TokenFile = filepath.Join(base, "token.json")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPhotosBaseURL points the photo-library client at a fake server.
func WithPhotosBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Photos.BaseURL = url
	}
}

// WithTimeZone overrides the reference time zone.
func WithTimeZone(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Persist.TimeZone = name
	}
}

// WithoutLedger disables the run history database.
func WithoutLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// WithEnsuredDirectories creates the queue, images, and state directories.
func WithEnsuredDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}
