package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	QueueDir    string `toml:"queue_dir"`
	ImagesDir   string `toml:"images_dir"`
	StateDir    string `toml:"state_dir"`
	DoneDirName string `toml:"done_dir_name"`
}

// Fetch contains configuration for downloading queued entries.
type Fetch struct {
	Concurrency    int    `toml:"concurrency"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RedirectParam  string `toml:"redirect_param"`
	UserAgent      string `toml:"user_agent"`
}

// Upload contains configuration for the raw upload fan-out.
type Upload struct {
	Concurrency    int `toml:"concurrency"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Persist contains configuration for writing images to the images directory.
type Persist struct {
	// TimeZone interprets timestamps that carry no UTC offset.
	TimeZone string `toml:"time_zone"`
	// FallbackExtension names files whose content could not be sniffed.
	FallbackExtension string `toml:"fallback_extension"`
}

// Photos contains Google Photos Library API settings.
type Photos struct {
	BaseURL         string `toml:"base_url"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
}

// Ledger contains configuration for the run history database.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy pushes and health pings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	HealthcheckURL string `toml:"healthcheck_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for photoferry.
//
// Configuration sections by subsystem:
//   - Paths: queue, images, and state directories
//   - Fetch: download concurrency, timeout, and the redirect query parameter
//   - Upload: raw upload concurrency and timeout
//   - Persist: reference time zone and fallback extension
//   - Photos: Google Photos endpoint and OAuth credential files
//   - Ledger: run history database
//   - Notifications: ntfy topic and health check URL
//   - Logging: log format, level, and optional file
type Config struct {
	Paths         Paths         `toml:"paths"`
	Fetch         Fetch         `toml:"fetch"`
	Upload        Upload        `toml:"upload"`
	Persist       Persist       `toml:"persist"`
	Photos        Photos        `toml:"photos"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	location *time.Location
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("photoferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the queue, images, and state directories. Dry runs
// must not call this: they never create files or directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.QueueDir, c.Paths.ImagesDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDoneDir is where fully processed batch files are archived.
func (c *Config) QueueDoneDir() string {
	return filepath.Join(c.Paths.QueueDir, c.Paths.DoneDirName)
}

// ImagesDoneDir is where uploaded images are archived.
func (c *Config) ImagesDoneDir() string {
	return filepath.Join(c.Paths.ImagesDir, c.Paths.DoneDirName)
}

// LedgerPath returns the resolved run history database path.
func (c *Config) LedgerPath() string {
	if strings.TrimSpace(c.Ledger.Path) != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the run lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "photoferry.lock")
}

// Location returns the reference time zone used for timestamps without an offset.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Persist.TimeZone)
	if err != nil {
		return time.UTC
	}
	c.location = loc
	return loc
}

// RedirectQuery splits the fetch redirect parameter into key and value.
func (c *Config) RedirectQuery() (string, string) {
	key, value, _ := strings.Cut(c.Fetch.RedirectParam, "=")
	return strings.TrimSpace(key), strings.TrimSpace(value)
}

// FetchTimeout returns the HTTP client timeout for downloads (0 means none).
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// UploadTimeout returns the HTTP client timeout for uploads (0 means none).
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
