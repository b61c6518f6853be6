package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validatePhotos(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.QueueDir == "" {
		return errors.New("paths.queue_dir must be set")
	}
	if c.Paths.ImagesDir == "" {
		return errors.New("paths.images_dir must be set")
	}
	if c.Paths.QueueDir == c.Paths.ImagesDir {
		return errors.New("paths.queue_dir and paths.images_dir must differ")
	}
	if strings.ContainsAny(c.Paths.DoneDirName, `/\`) || c.Paths.DoneDirName == "." || c.Paths.DoneDirName == ".." {
		return fmt.Errorf("paths.done_dir_name %q must be a plain directory name", c.Paths.DoneDirName)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Concurrency <= 0 {
		return errors.New("fetch.concurrency must be positive")
	}
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be zero or positive")
	}
	if c.Fetch.RedirectParam != "" {
		key, _ := c.RedirectQuery()
		if key == "" || !strings.Contains(c.Fetch.RedirectParam, "=") {
			return fmt.Errorf("fetch.redirect_param %q must look like key=value", c.Fetch.RedirectParam)
		}
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Concurrency <= 0 {
		return errors.New("upload.concurrency must be positive")
	}
	if c.Upload.TimeoutSeconds < 0 {
		return errors.New("upload.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validatePhotos() error {
	parsed, err := url.Parse(c.Photos.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("photos.base_url %q must be an absolute URL", c.Photos.BaseURL)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" {
		parsed, err := url.Parse(c.Notifications.NtfyTopic)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic %q must be a full URL", c.Notifications.NtfyTopic)
		}
	}
	if c.Notifications.HealthcheckURL != "" {
		parsed, err := url.Parse(c.Notifications.HealthcheckURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.healthcheck_url %q must be a full URL", c.Notifications.HealthcheckURL)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}
