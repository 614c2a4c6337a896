// Package notify delivers outbound event notifications over HTTP.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// RouteCompletedEvent is the webhook payload emitted after a rutero is
// completado. EventID is assigned on delivery so consumers can dedupe
// retried posts.
type RouteCompletedEvent struct {
	EventID       string    `json:"event_id"`
	RuteroID      int64     `json:"rutero_id"`
	RouteName     string    `json:"route_name"`
	DriverID      *int64    `json:"driver_id,omitempty"`
	ResolvedCount int       `json:"resolved_count"`
	TotalCount    int       `json:"total_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Webhook posts events to a configured endpoint with retries. A blank URL
// disables delivery.
type Webhook struct {
	logger *slog.Logger
	client *retryablehttp.Client
	url    string
}

// NewWebhook builds a webhook notifier.
func NewWebhook(logger *slog.Logger, url string) *Webhook {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &Webhook{logger: logger, client: client, url: url}
}

// RouteCompleted delivers the completion event. Failures are returned for
// logging but must never block or roll back the completion itself.
func (w *Webhook) RouteCompleted(ctx context.Context, event RouteCompletedEvent) error {
	if w.url == "" {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Distriflow-Event", "route.completed")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	w.logger.Info("webhook delivered", "event", "route.completed", "rutero_id", event.RuteroID)
	return nil
}
