package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"photoferry/internal/config"
)

// Healthcheck pings a dead-man's-switch endpoint in the healthchecks.io
// style: the base URL on success and base+"/fail" on failure.
type Healthcheck interface {
	Success(ctx context.Context) error
	Fail(ctx context.Context, cause error) error
}

// NewHealthcheck returns a pinger for the configured URL, or a noop one.
func NewHealthcheck(cfg *config.Config) Healthcheck {
	url := strings.TrimSpace(cfg.Notifications.HealthcheckURL)
	if url == "" {
		return noopHealthcheck{}
	}
	return &httpHealthcheck{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: requestTimeout(cfg)},
	}
}

type httpHealthcheck struct {
	url    string
	client *http.Client
}

func (h *httpHealthcheck) Success(ctx context.Context) error {
	return h.ping(ctx, h.url, "")
}

func (h *httpHealthcheck) Fail(ctx context.Context, cause error) error {
	body := ""
	if cause != nil {
		body = cause.Error()
	}
	return h.ping(ctx, h.url+"/fail", body)
}

func (h *httpHealthcheck) ping(ctx context.Context, url, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build health ping: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("send health ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

type noopHealthcheck struct{}

func (noopHealthcheck) Success(context.Context) error     { return nil }
func (noopHealthcheck) Fail(context.Context, error) error { return nil }
