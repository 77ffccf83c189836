// Package webhook delivers outbound job lifecycle notifications. Delivery
// is best effort: network failures are retried with exponential backoff up
// to a small attempt cap, then dropped with a log line.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// Events emitted after terminal job outcomes.
const (
	EventJobSuccess = "job_success"
	EventJobFailed  = "job_failed"
)

// Client implements domain.Notifier against a single webhook URL.
type Client struct {
	url         string
	maxAttempts int
	http        *http.Client
}

// New returns a client. An empty url disables delivery.
func New(url string, maxAttempts int, timeout time.Duration) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Client{
		url:         url,
		maxAttempts: maxAttempts,
		http:        &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool { return c.url != "" }

type envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Notify posts {event, timestamp, data} to the configured URL. HTTP 5xx
// and transport errors are retried; 4xx responses are treated as final.
func (c *Client) Notify(ctx domain.Context, event string, data map[string]any) error {
	if !c.Enabled() {
		return nil
	}
	payload := envelope{
		Event:     event,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}
	if ts, ok := data["completed_at"].(string); ok && ts != "" {
		payload.Timestamp = ts
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=webhook.Notify event=%s: %w", event, err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.maxAttempts-1)), ctx)
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			slog.Warn("webhook delivery failed",
				slog.String("event", event),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("op=webhook.Notify event=%s attempts=%d: %w", event, attempt, err)
	}
	return nil
}
