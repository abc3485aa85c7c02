package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"unspool/internal/config"
)

const userAgent = "Unspool-Go/0.1.0"

// Event identifies a notification trigger.
type Event string

const (
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventDuplicate      Event = "duplicate"
	EventConflict       Event = "conflict"
	EventReview         Event = "review"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event-specific values used to compose the message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		prefs:    cfg.Notifications,
		recent:   make(map[string]time.Time),
		now:      time.Now,
	}
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
	prefs    config.Notifications
	now      func() time.Time

	mu     sync.Mutex
	recent map[string]time.Time
}

// Publish composes and sends the notification for an event. Events disabled
// by configuration, below the queue size threshold, or repeated within the
// dedup window are silently dropped.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled(event, payload) {
		return nil
	}
	msg, ok := n.compose(event, payload)
	if !ok {
		return nil
	}
	if n.suppressed(event, msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event, payload Payload) bool {
	switch event {
	case EventQueueStarted:
		return n.prefs.BatchSummaries && payloadInt(payload, "count") >= n.prefs.QueueMinItems
	case EventQueueCompleted:
		total := payloadInt(payload, "processed") + payloadInt(payload, "failed")
		return n.prefs.BatchSummaries && total >= n.prefs.QueueMinItems
	case EventDuplicate, EventConflict:
		return n.prefs.Duplicates
	case EventReview:
		return n.prefs.Review
	case EventError:
		return n.prefs.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

// suppressed records the message and reports whether an identical one was
// already sent inside the dedup window.
func (n *ntfyService) suppressed(event Event, body string) bool {
	window := time.Duration(n.prefs.DedupWindowSeconds) * time.Second
	if window <= 0 || event == EventTest {
		return false
	}
	key := string(event) + "\n" + body
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if sent, ok := n.recent[key]; ok && now.Sub(sent) < window {
		return true
	}
	for k, sent := range n.recent {
		if now.Sub(sent) >= window {
			delete(n.recent, k)
		}
	}
	n.recent[key] = now
	return false
}

func (n *ntfyService) compose(event Event, payload Payload) (message, bool) {
	switch event {
	case EventQueueStarted:
		count := payloadInt(payload, "count")
		return message{
			title: "Unspool - Queue Started",
			body:  fmt.Sprintf("Started processing %d locked files", count),
			tags:  []string{"unspool", "queue", "started"},
		}, true

	case EventQueueCompleted:
		processed := payloadInt(payload, "processed")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		if failed == 0 {
			return message{
				title: "Unspool - Queue Complete",
				body:  fmt.Sprintf("✅ Queue complete: %d tracks unlocked in %s", processed, duration),
				tags:  []string{"unspool", "queue", "completed"},
			}, true
		}
		return message{
			title: "Unspool - Queue Complete (with errors)",
			body:  fmt.Sprintf("Queue complete: %d unlocked, %d failed in %s", processed, failed, duration),
			tags:  []string{"unspool", "queue", "completed"},
		}, true

	case EventDuplicate:
		track := payloadString(payload, "track")
		body := fmt.Sprintf("♻️ Duplicate skipped: %s", track)
		if existing := payloadString(payload, "existing"); existing != "" {
			body = fmt.Sprintf("%s\nAlready in library: %s", body, existing)
		}
		return message{
			title: "Unspool - Duplicate",
			body:  body,
			tags:  []string{"unspool", "duplicate", "skipped"},
		}, true

	case EventConflict:
		track := payloadString(payload, "track")
		body := fmt.Sprintf("⚠️ Metadata conflict: %s", track)
		if existing := payloadString(payload, "existing"); existing != "" {
			body = fmt.Sprintf("%s\nMatches library track: %s", body, existing)
		}
		return message{
			title: "Unspool - Conflict",
			body:  body,
			tags:  []string{"unspool", "conflict", "held"},
		}, true

	case EventReview:
		track := payloadString(payload, "track")
		body := fmt.Sprintf("Needs review: %s", track)
		if reason := payloadString(payload, "reason"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title: "Unspool - Review",
			body:  body,
			tags:  []string{"unspool", "review"},
		}, true

	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if contextLabel := payloadString(payload, "context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if errText := payloadError(payload, "error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Unspool - Error",
			body:     builder.String(),
			tags:     []string{"unspool", "error", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Unspool - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"unspool", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
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
	if msg.priority != "" && msg.priority != "default" {
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

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
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
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	if v, ok := payload[key].(time.Duration); ok {
		return v
	}
	return 0
}

func payloadError(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case error:
		return strings.TrimSpace(v.Error())
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
