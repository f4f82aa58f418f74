package monitor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Ledger-Signature"

// Event is the JSON document POSTed to the alert webhook.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// WebhookNotifier delivers alert events to a single URL.
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	logger     *zap.Logger
}

// NewWebhookNotifier creates a notifier. When secret is non-empty every
// delivery is signed with it.
func NewWebhookNotifier(url, secret string, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     []time.Duration{0, time.Second, 5 * time.Second},
		logger:     logger,
	}
}

// Notify delivers one event, retrying with backoff. It has the shape of
// AlertFunc.
func (n *WebhookNotifier) Notify(ctx context.Context, eventType string, payload map[string]any) {
	if err := n.Deliver(ctx, eventType, payload); err != nil {
		n.logger.Warn("webhook: delivery failed",
			zap.String("url", n.url),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}

// Deliver is Notify returning the final delivery error.
func (n *WebhookNotifier) Deliver(ctx context.Context, eventType string, payload map[string]any) error {
	body, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt, delay := range n.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = n.post(ctx, body); lastErr == nil {
			return nil
		}
		n.logger.Debug("webhook: attempt failed", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return lastErr
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
