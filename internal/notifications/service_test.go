package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"unspool/internal/config"
	"unspool/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "queue started",
			event: notifications.EventQueueStarted,
			payload: notifications.Payload{
				"count": 5,
			},
			expectTitle:   "Unspool - Queue Started",
			expectMessage: "Started processing 5 locked files",
			expectTags:    "unspool,queue,started",
		},
		{
			name:  "queue completed",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": 4,
				"failed":    0,
				"duration":  95 * time.Second,
			},
			expectTitle:   "Unspool - Queue Complete",
			expectMessage: "✅ Queue complete: 4 tracks unlocked in 1m35s",
			expectTags:    "unspool,queue,completed",
		},
		{
			name:  "queue completed with failures",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"failed":    1,
				"duration":  time.Minute,
			},
			expectTitle:   "Unspool - Queue Complete (with errors)",
			expectMessage: "Queue complete: 3 unlocked, 1 failed in 1m0s",
			expectTags:    "unspool,queue,completed",
		},
		{
			name:  "duplicate",
			event: notifications.EventDuplicate,
			payload: notifications.Payload{
				"track":    "Neon Lights - Night Drive",
				"existing": "/library/Neon Lights - Night Drive.flac",
			},
			expectTitle:   "Unspool - Duplicate",
			expectMessage: "♻️ Duplicate skipped: Neon Lights - Night Drive\nAlready in library: /library/Neon Lights - Night Drive.flac",
			expectTags:    "unspool,duplicate,skipped",
		},
		{
			name:  "conflict",
			event: notifications.EventConflict,
			payload: notifications.Payload{
				"track":    "Bon Iver - Holocene",
				"existing": "/library/Bon Iver - Holocene.flac",
			},
			expectTitle:   "Unspool - Conflict",
			expectMessage: "⚠️ Metadata conflict: Bon Iver - Holocene\nMatches library track: /library/Bon Iver - Holocene.flac",
			expectTags:    "unspool,conflict,held",
		},
		{
			name:  "review",
			event: notifications.EventReview,
			payload: notifications.Payload{
				"track":  "mystery.ncm",
				"reason": "metadata checksum mismatch",
			},
			expectTitle:   "Unspool - Review",
			expectMessage: "Needs review: mystery.ncm\nmetadata checksum mismatch",
			expectTags:    "unspool,review",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "unlocker (item #7)",
				"error":   "decrypted payload: unrecognized audio stream",
			},
			expectTitle:    "Unspool - Error",
			expectMessage:  "❌ Error with unlocker (item #7): decrypted payload: unrecognized audio stream",
			expectTags:     "unspool,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.QueueMinItems = 1

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.BatchSummaries = false
	cfg.Notifications.Duplicates = false
	cfg.Notifications.Review = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	disabled := []notifications.Event{
		notifications.EventQueueStarted,
		notifications.EventQueueCompleted,
		notifications.EventDuplicate,
		notifications.EventConflict,
		notifications.EventReview,
		notifications.EventError,
	}
	for _, event := range disabled {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"count": 100}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceSkipsSmallQueues(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueMinItems = 3

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventQueueStarted, notifications.Payload{"count": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected small queue start to be skipped, got %d calls", calls.Load())
	}
	if err := svc.Publish(context.Background(), notifications.EventQueueStarted, notifications.Payload{"count": 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected queue start at threshold to send, got %d calls", calls.Load())
	}
}

func TestNtfyServiceCollapsesRepeatsInsideWindow(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600

	svc := notifications.NewService(&cfg)
	payload := notifications.Payload{"track": "same.ncm", "reason": "bad checksum"}
	for range 3 {
		if err := svc.Publish(context.Background(), notifications.EventReview, payload); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected repeated review to send once, got %d calls", calls.Load())
	}

	if err := svc.Publish(context.Background(), notifications.EventReview, notifications.Payload{"track": "other.ncm"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected distinct review to send, got %d calls", calls.Load())
	}
}
