package model

import "time"

// ChannelType represents the kind of notification channel
type ChannelType string

const (
	ChannelWebhook ChannelType = "webhook"
	ChannelSlack   ChannelType = "slack"
	ChannelLog     ChannelType = "log"
)

// AuthType represents the authentication scheme for outbound deliveries
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api-key"
)

// Authentication holds credentials for a delivery endpoint. Required fields
// depend on Type: bearer needs Token, basic needs Username and Password,
// api-key needs APIKey and Header.
type Authentication struct {
	Type     AuthType `json:"type" mapstructure:"type"`
	Token    string   `json:"token,omitempty" mapstructure:"token"`
	Username string   `json:"username,omitempty" mapstructure:"username"`
	Password string   `json:"password,omitempty" mapstructure:"password"`
	APIKey   string   `json:"api_key,omitempty" mapstructure:"api_key"`
	Header   string   `json:"header,omitempty" mapstructure:"header"`
}

// WebhookConfig configures a webhook channel
type WebhookConfig struct {
	URL            string            `json:"url" mapstructure:"url"`
	Method         string            `json:"method,omitempty" mapstructure:"method"`
	Timeout        time.Duration     `json:"timeout,omitempty" mapstructure:"timeout"`
	Headers        map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	Retries        int               `json:"retries,omitempty" mapstructure:"retries"`
	Authentication *Authentication   `json:"authentication,omitempty" mapstructure:"authentication"`
}

// SlackConfig configures a Slack incoming-webhook channel
type SlackConfig struct {
	WebhookURL string        `json:"webhook_url" mapstructure:"webhook_url"`
	Channel    string        `json:"channel,omitempty" mapstructure:"channel"`
	Timeout    time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	Retries    int           `json:"retries,omitempty" mapstructure:"retries"`
}

// LogConfig configures a log channel
type LogConfig struct {
	Level string `json:"level,omitempty" mapstructure:"level"`
}

// AlertChannel is one configured notification destination. Exactly one of the
// type-specific config blocks is set, matching Type.
type AlertChannel struct {
	Type       ChannelType         `json:"type" mapstructure:"type"`
	Name       string              `json:"name" mapstructure:"name"`
	Enabled    bool                `json:"enabled" mapstructure:"enabled"`
	ErrorTypes []CriticalErrorType `json:"error_types" mapstructure:"error_types"`
	Priority   int                 `json:"priority" mapstructure:"priority"`
	Webhook    *WebhookConfig      `json:"webhook,omitempty" mapstructure:"webhook"`
	Slack      *SlackConfig        `json:"slack,omitempty" mapstructure:"slack"`
	Log        *LogConfig          `json:"log,omitempty" mapstructure:"log"`
}

// Accepts reports whether the channel is configured to receive the error type
func (c *AlertChannel) Accepts(t CriticalErrorType) bool {
	for _, et := range c.ErrorTypes {
		if et == t {
			return true
		}
	}
	return false
}

// RateLimitConfig bounds how many alerts may be delivered per hour
type RateLimitConfig struct {
	MaxAlertsPerHour int `json:"max_alerts_per_hour" mapstructure:"max_alerts_per_hour"`
	CooldownMinutes  int `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`
}

// DeduplicationConfig controls merging of repeated occurrences
type DeduplicationConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	WindowMinutes int  `json:"window_minutes" mapstructure:"window_minutes"`
}

// EscalationConfig controls re-notification of long-unresolved alerts
type EscalationConfig struct {
	Enabled              bool     `json:"enabled" mapstructure:"enabled"`
	EscalateAfterMinutes int      `json:"escalate_after_minutes" mapstructure:"escalate_after_minutes"`
	EscalationChannels   []string `json:"escalation_channels" mapstructure:"escalation_channels"`
}

// AlertConfig is the operator-supplied alerting policy
type AlertConfig struct {
	Enabled       bool                `json:"enabled" mapstructure:"enabled"`
	Channels      []AlertChannel      `json:"channels" mapstructure:"channels"`
	RateLimiting  RateLimitConfig     `json:"rate_limiting" mapstructure:"rate_limiting"`
	Deduplication DeduplicationConfig `json:"deduplication" mapstructure:"deduplication"`
	Escalation    EscalationConfig    `json:"escalation" mapstructure:"escalation"`
}

// DedupWindow returns the deduplication window as a duration
func (c *AlertConfig) DedupWindow() time.Duration {
	return time.Duration(c.Deduplication.WindowMinutes) * time.Minute
}

// NotificationStatus represents the delivery state of a notification
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// AlertNotification records a single delivery attempt for one channel
type AlertNotification struct {
	ID          string             `json:"id"`
	AlertID     string             `json:"alert_id"`
	ChannelType ChannelType        `json:"channel_type"`
	ChannelName string             `json:"channel_name"`
	Status      NotificationStatus `json:"status"`
	RetryCount  int                `json:"retry_count"`
	MaxRetries  int                `json:"max_retries"`
	CreatedAt   time.Time          `json:"created_at"`
}
