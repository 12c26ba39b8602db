package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	maxTimeout     = 60 * time.Second
	userAgent      = ProductName + "-AlertManager/" + ProductVersion
)

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// WebhookTransport delivers alert notifications to HTTP endpoints
type WebhookTransport struct {
	logger *zap.Logger
	client *http.Client
	policy Policy
}

// NewWebhookTransport creates a webhook transport. Per-request timeouts come
// from the channel config; the shared client carries no timeout of its own.
func NewWebhookTransport(logger *zap.Logger) *WebhookTransport {
	return &WebhookTransport{
		logger: logger.Named("webhook-transport"),
		client: &http.Client{},
		policy: DefaultPolicy(),
	}
}

type webhookPayload struct {
	Alert        payloadAlert        `json:"alert"`
	Notification payloadNotification `json:"notification"`
	System       payloadSystem       `json:"system"`
}

type payloadAlert struct {
	ID              string                  `json:"id"`
	Timestamp       string                  `json:"timestamp"`
	Type            model.CriticalErrorType `json:"type"`
	Severity        model.Severity          `json:"severity"`
	Message         string                  `json:"message"`
	Source          string                  `json:"source"`
	Environment     string                  `json:"environment"`
	Resolved        bool                    `json:"resolved"`
	OccurrenceCount int                     `json:"occurrenceCount"`
	Metadata        map[string]interface{}  `json:"metadata"`
}

type payloadNotification struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	Priority int    `json:"priority"`
}

type payloadSystem struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func buildPayload(channel *model.AlertChannel, alert *model.CriticalError, notification *model.AlertNotification) webhookPayload {
	return webhookPayload{
		Alert: payloadAlert{
			ID:              alert.ID,
			Timestamp:       alert.Timestamp.UTC().Format(time.RFC3339),
			Type:            alert.Type,
			Severity:        alert.Severity,
			Message:         alert.Message,
			Source:          alert.Source,
			Environment:     alert.Environment,
			Resolved:        alert.Resolved,
			OccurrenceCount: alert.OccurrenceCount,
			Metadata:        alert.Metadata,
		},
		Notification: payloadNotification{
			ID:       notification.ID,
			Channel:  channel.Name,
			Priority: channel.Priority,
		},
		System: payloadSystem{
			Name:      ProductName,
			Version:   ProductVersion,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Send implements Transport.Send. Total attempts are 1 + the channel's retry
// budget; the returned error carries the last HTTP status or network error.
func (w *WebhookTransport) Send(ctx context.Context, channel *model.AlertChannel, alert *model.CriticalError, notification *model.AlertNotification) error {
	cfg := channel.Webhook
	if cfg == nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("channel %s: %w", channel.Name, ErrMissingConfig)
	}

	body, err := json.Marshal(buildPayload(channel, alert, notification))
	if err != nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	policy := w.policy
	policy.MaxAttempts = 1 + Retries(channel)
	notification.MaxRetries = policy.MaxAttempts - 1

	attempts := 0
	err = Do(ctx, policy, func(ctx context.Context) error {
		attempts++
		return w.attempt(ctx, method, cfg, body, timeout)
	})
	notification.RetryCount = attempts - 1

	if err != nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("webhook %s: %w", channel.Name, err)
	}

	notification.Status = model.NotificationSent
	w.logger.Debug("Webhook delivered",
		zap.String("channel", channel.Name),
		zap.String("alert_id", alert.ID),
		zap.Int("attempts", attempts))
	return nil
}

func (w *WebhookTransport) attempt(ctx context.Context, method string, cfg *model.WebhookConfig, body []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.Authentication != nil {
		applyAuth(req, cfg.Authentication)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return nil
}

func applyAuth(req *http.Request, auth *model.Authentication) {
	switch auth.Type {
	case model.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case model.AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	case model.AuthAPIKey:
		req.Header.Set(auth.Header, auth.APIKey)
	}
}

// ValidateConfig implements Transport.ValidateConfig
func (w *WebhookTransport) ValidateConfig(channel *model.AlertChannel) bool {
	cfg := channel.Webhook
	if cfg == nil {
		return false
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if cfg.Method != "" && !supportedMethods[cfg.Method] {
		return false
	}

	if cfg.Timeout < 0 || cfg.Timeout > maxTimeout {
		return false
	}

	if auth := cfg.Authentication; auth != nil {
		switch auth.Type {
		case model.AuthBearer:
			return auth.Token != ""
		case model.AuthBasic:
			return auth.Username != "" && auth.Password != ""
		case model.AuthAPIKey:
			return auth.APIKey != "" && auth.Header != ""
		default:
			return false
		}
	}

	return true
}
