package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	if err := c.normalizePersist(); err != nil {
		return err
	}
	if err := c.normalizePhotos(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeNotifications()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

// resolveValue fills an empty value from the environment, then from fallback.
func resolveValue(value *string, key, fallback string) {
	*value = strings.TrimSpace(*value)
	if *value != "" {
		return
	}
	if env, ok := os.LookupEnv(key); ok {
		*value = strings.TrimSpace(env)
	}
	if *value == "" {
		*value = fallback
	}
}

func (c *Config) normalizePaths() error {
	resolveValue(&c.Paths.QueueDir, "PHOTOFERRY_QUEUE_DIR", defaultQueueDir)
	resolveValue(&c.Paths.ImagesDir, "PHOTOFERRY_IMAGES_DIR", defaultImagesDir)

	var err error
	if c.Paths.QueueDir, err = expandPath(c.Paths.QueueDir); err != nil {
		return fmt.Errorf("paths.queue_dir: %w", err)
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.DoneDirName = strings.TrimSpace(c.Paths.DoneDirName)
	if c.Paths.DoneDirName == "" {
		c.Paths.DoneDirName = defaultDoneDirName
	}
	return nil
}

func (c *Config) normalizeFetch() {
	c.Fetch.RedirectParam = strings.TrimSpace(c.Fetch.RedirectParam)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizePersist() error {
	c.Persist.TimeZone = strings.TrimSpace(c.Persist.TimeZone)
	if c.Persist.TimeZone == "" {
		c.Persist.TimeZone = defaultTimeZone
	}
	loc, err := time.LoadLocation(c.Persist.TimeZone)
	if err != nil {
		return fmt.Errorf("persist.time_zone: %w", err)
	}
	c.location = loc

	c.Persist.FallbackExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Persist.FallbackExtension)), ".")
	if c.Persist.FallbackExtension == "" {
		c.Persist.FallbackExtension = defaultFallbackExtension
	}
	return nil
}

func (c *Config) normalizePhotos() error {
	resolveValue(&c.Photos.CredentialsFile, "PHOTOFERRY_CREDENTIALS_FILE", defaultCredentialsFile)
	resolveValue(&c.Photos.TokenFile, "PHOTOFERRY_TOKEN_FILE", defaultTokenFile)

	c.Photos.BaseURL = strings.TrimRight(strings.TrimSpace(c.Photos.BaseURL), "/")
	if c.Photos.BaseURL == "" {
		c.Photos.BaseURL = defaultPhotosBaseURL
	}
	var err error
	if c.Photos.CredentialsFile, err = expandPath(c.Photos.CredentialsFile); err != nil {
		return fmt.Errorf("photos.credentials_file: %w", err)
	}
	if c.Photos.TokenFile, err = expandPath(c.Photos.TokenFile); err != nil {
		return fmt.Errorf("photos.token_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	var err error
	if c.Ledger.Path, err = expandPath(strings.TrimSpace(c.Ledger.Path)); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	resolveValue(&c.Notifications.NtfyTopic, "PHOTOFERRY_NTFY_TOPIC", "")
	resolveValue(&c.Notifications.HealthcheckURL, "PHOTOFERRY_HEALTHCHECK_URL", "")
	c.Notifications.HealthcheckURL = strings.TrimRight(strings.TrimSpace(c.Notifications.HealthcheckURL), "/")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
