// Package notify posts completed evaluation runs to a webhook.
//
// Payloads are signed with HMAC-SHA256 when a secret is configured, so the
// receiver can verify them against X-Console-Signature.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentoven/console/internal/config"
	"github.com/agentoven/console/pkg/models"
)

const (
	EventRunCompleted = "run_completed"

	maxAttempts = 3
)

// Event is the webhook payload.
type Event struct {
	Type      string               `json:"type"`
	Run       models.EvaluationRun `json:"run"`
	Timestamp time.Time            `json:"timestamp"`
}

// WebhookPublisher sends every completed run to one URL.
type WebhookPublisher struct {
	url     string
	secret  string
	client  *http.Client
	backoff time.Duration
}

// NewWebhookPublisher creates a publisher for cfg.WebhookURL.
func NewWebhookPublisher(cfg config.NotifyConfig) *WebhookPublisher {
	return &WebhookPublisher{
		url:     cfg.WebhookURL,
		secret:  cfg.WebhookSecret,
		client:  &http.Client{Timeout: 15 * time.Second},
		backoff: 2 * time.Second,
	}
}

// PublishRun posts the run, retrying up to three times with a growing pause.
func (p *WebhookPublisher) PublishRun(ctx context.Context, run models.EvaluationRun) error {
	body, err := json.Marshal(Event{Type: EventRunCompleted, Run: run, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}
		if lastErr = p.send(ctx, body); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", maxAttempts, lastErr)
}

func (p *WebhookPublisher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AgentConsole-Webhook/1.0")
	req.Header.Set("X-Console-Event", EventRunCompleted)
	if p.secret != "" {
		req.Header.Set("X-Console-Signature", "sha256="+Sign(p.secret, body))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, p.url)
	}
	return nil
}

func (p *WebhookPublisher) Close() error { return nil }

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
