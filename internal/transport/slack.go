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

// SlackTransport posts alert notifications to a Slack incoming webhook
type SlackTransport struct {
	logger *zap.Logger
	client *http.Client
	policy Policy
}

// NewSlackTransport creates a Slack transport
func NewSlackTransport(logger *zap.Logger) *SlackTransport {
	return &SlackTransport{
		logger: logger.Named("slack-transport"),
		client: &http.Client{},
		policy: DefaultPolicy(),
	}
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func severityColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "#d00000"
	case model.SeverityHigh:
		return "#e85d04"
	case model.SeverityMedium:
		return "#faa307"
	default:
		return "#8d99ae"
	}
}

func buildSlackMessage(cfg *model.SlackConfig, alert *model.CriticalError) slackMessage {
	return slackMessage{
		Channel: cfg.Channel,
		Text:    fmt.Sprintf(":rotating_light: %s alert: %s", alert.Severity, alert.Type),
		Attachments: []slackAttachment{{
			Color: severityColor(alert.Severity),
			Title: string(alert.Type),
			Text:  alert.Message,
			Fields: []slackField{
				{Title: "Severity", Value: string(alert.Severity), Short: true},
				{Title: "Environment", Value: alert.Environment, Short: true},
				{Title: "Source", Value: alert.Source, Short: true},
				{Title: "Occurrences", Value: fmt.Sprintf("%d", alert.OccurrenceCount), Short: true},
			},
			Footer: ProductName + " " + ProductVersion,
			TS:     alert.Timestamp.Unix(),
		}},
	}
}

// Send implements Transport.Send
func (s *SlackTransport) Send(ctx context.Context, channel *model.AlertChannel, alert *model.CriticalError, notification *model.AlertNotification) error {
	cfg := channel.Slack
	if cfg == nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("channel %s: %w", channel.Name, ErrMissingConfig)
	}

	body, err := json.Marshal(buildSlackMessage(cfg, alert))
	if err != nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("marshal slack message: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	policy := s.policy
	policy.MaxAttempts = 1 + Retries(channel)
	notification.MaxRetries = policy.MaxAttempts - 1

	attempts := 0
	err = Do(ctx, policy, func(ctx context.Context) error {
		attempts++
		return s.attempt(ctx, cfg.WebhookURL, body, timeout)
	})
	notification.RetryCount = attempts - 1

	if err != nil {
		notification.Status = model.NotificationFailed
		return fmt.Errorf("slack %s: %w", channel.Name, err)
	}

	notification.Status = model.NotificationSent
	return nil
}

func (s *SlackTransport) attempt(ctx context.Context, webhookURL string, body []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
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

// ValidateConfig implements Transport.ValidateConfig
func (s *SlackTransport) ValidateConfig(channel *model.AlertChannel) bool {
	cfg := channel.Slack
	if cfg == nil {
		return false
	}

	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return cfg.Timeout >= 0 && cfg.Timeout <= maxTimeout
}
