package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"abstractor/internal/config"
	"abstractor/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySearchCompleted(context.Background(), "123 Main St", "Low"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "search completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifySearchCompleted(context.Background(), "123 Main St", "Elevated")
			},
			expectTitle:    "Abstractor - Search Complete",
			expectMessage:  "Title search complete: 123 Main St\nRisk: Elevated",
			expectTags:     "abstractor,search,completed",
			expectPriority: "high",
		},
		{
			name: "search failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifySearchFailed(context.Background(), "123 Main St", "records portal unreachable")
			},
			expectTitle:    "Abstractor - Search Failed",
			expectMessage:  "Search failed: 123 Main St\nrecords portal unreachable",
			expectTags:     "abstractor,search,failed",
			expectPriority: "high",
		},
		{
			name: "partial report",
			notify: func(svc notifications.Service) error {
				return svc.NotifyPartialComplete(context.Background(), "123 Main St")
			},
			expectTitle:   "Abstractor - Partial Report",
			expectMessage: "Partial title report issued: 123 Main St\nManual review recommended",
			expectTags:    "abstractor,search,partial",
		},
		{
			name: "test notification",
			notify: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Abstractor - Test",
			expectMessage:  "Notification system test",
			expectTags:     "abstractor,test",
			expectPriority: "low",
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
			cfg.Notifications.Completed = true
			cfg.Notifications.Failed = true
			cfg.Notifications.Partial = true

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
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

func TestNtfyServiceHonorsEventFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completed = false
	cfg.Notifications.Failed = false
	cfg.Notifications.Partial = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifySearchCompleted(ctx, "123 Main St", "Low"); err != nil {
		t.Fatalf("disabled completed event returned error: %v", err)
	}
	if err := svc.NotifySearchFailed(ctx, "123 Main St", "boom"); err != nil {
		t.Fatalf("disabled failed event returned error: %v", err)
	}
	if err := svc.NotifyPartialComplete(ctx, "123 Main St"); err != nil {
		t.Fatalf("disabled partial event returned error: %v", err)
	}
}
