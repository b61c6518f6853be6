package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"photoferry/internal/config"
)

const userAgent = "photoferry/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventProcessCompleted Event = "process_completed"
	EventUploadCompleted  Event = "upload_completed"
	EventBatchRejected    Event = "batch_rejected"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: requestTimeout(cfg)},
	}
}

func requestTimeout(cfg *config.Config) time.Duration {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventProcessCompleted:
		written := payloadInt(payload, "written")
		uploaded := payloadInt(payload, "uploaded")
		batches := payloadInt(payload, "batches")
		if batches == 0 && written == 0 {
			return message{}, false
		}
		return message{
			title: "photoferry - Batches Processed",
			body: fmt.Sprintf("📷 %d batches, %d images written, %d minted",
				batches, written, uploaded),
			tags: []string{"photoferry", "process", "completed"},
		}, true
	case EventUploadCompleted:
		uploaded := payloadInt(payload, "uploaded")
		if uploaded == 0 {
			return message{}, false
		}
		body := fmt.Sprintf("⬆️ Minted %d media items", uploaded)
		if failed := payloadInt(payload, "failed"); failed > 0 {
			body = fmt.Sprintf("%s (%d rejected)", body, failed)
		}
		return message{
			title: "photoferry - Upload Complete",
			body:  body,
			tags:  []string{"photoferry", "upload", "completed"},
		}, true
	case EventBatchRejected:
		body := "Rejected batch: " + payloadString(payload, "batch")
		if reason := payloadString(payload, "error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title: "photoferry - Batch Rejected",
			body:  body,
			tags:  []string{"photoferry", "batch", "rejected"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" during ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payloadString(payload, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "photoferry - Error",
			body:     builder.String(),
			tags:     []string{"photoferry", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "photoferry - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"photoferry", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
