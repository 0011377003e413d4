package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"abstractor/internal/config"
)

const userAgent = "Abstractor-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySearchCompleted(ctx context.Context, address string, riskBand string) error
	NotifySearchFailed(ctx context.Context, address string, reason string) error
	NotifyPartialComplete(ctx context.Context, address string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:       topic,
		client:         client,
		sendOnComplete: cfg.Notifications.Completed,
		sendOnFailed:   cfg.Notifications.Failed,
		sendOnPartial:  cfg.Notifications.Partial,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	sendOnComplete bool
	sendOnFailed   bool
	sendOnPartial  bool
}

func (n *ntfyService) NotifySearchCompleted(ctx context.Context, address, riskBand string) error {
	if !n.sendOnComplete {
		return nil
	}
	address = strings.TrimSpace(address)
	riskBand = strings.TrimSpace(riskBand)
	message := fmt.Sprintf("Title search complete: %s", address)
	if riskBand != "" {
		message = fmt.Sprintf("%s\nRisk: %s", message, riskBand)
	}
	data := payload{
		title:    "Abstractor - Search Complete",
		message:  message,
		tags:     []string{"abstractor", "search", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySearchFailed(ctx context.Context, address, reason string) error {
	if !n.sendOnFailed {
		return nil
	}
	address = strings.TrimSpace(address)
	message := fmt.Sprintf("Search failed: %s", address)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Abstractor - Search Failed",
		message:  message,
		tags:     []string{"abstractor", "search", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPartialComplete(ctx context.Context, address string) error {
	if !n.sendOnPartial {
		return nil
	}
	address = strings.TrimSpace(address)
	data := payload{
		title:   "Abstractor - Partial Report",
		message: fmt.Sprintf("Partial title report issued: %s\nManual review recommended", address),
		tags:    []string{"abstractor", "search", "partial"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Abstractor - Error",
		message:  builder.String(),
		tags:     []string{"abstractor", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Abstractor - Test",
		message:  "Notification system test",
		tags:     []string{"abstractor", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifySearchCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifySearchFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyPartialComplete(context.Context, string) error         { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
