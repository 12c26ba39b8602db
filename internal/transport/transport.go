package transport

import (
	"context"
	"errors"

	"github.com/claudeflow/alerting/internal/model"
)

// Product identity stamped into outbound payloads
const (
	ProductName    = "ClaudeFlow"
	ProductVersion = "1.0.0"
)

var (
	// ErrMissingConfig is returned when the channel lacks the config block
	// for its type
	ErrMissingConfig = errors.New("channel config missing for transport type")
)

// Transport delivers one notification for one channel to an external
// destination. Send updates the notification's status and retry count and
// returns an error only after exhausting the channel's retry budget.
type Transport interface {
	Send(ctx context.Context, channel *model.AlertChannel, alert *model.CriticalError, notification *model.AlertNotification) error

	// ValidateConfig reports whether the channel's configuration is usable.
	// Invalid channels are disabled at config-load time rather than failing
	// at send time.
	ValidateConfig(channel *model.AlertChannel) bool
}

// Registry maps channel types to their transports
type Registry map[model.ChannelType]Transport

// Retries returns the configured retry budget for a channel
func Retries(channel *model.AlertChannel) int {
	switch channel.Type {
	case model.ChannelWebhook:
		if channel.Webhook != nil && channel.Webhook.Retries > 0 {
			return channel.Webhook.Retries
		}
	case model.ChannelSlack:
		if channel.Slack != nil && channel.Slack.Retries > 0 {
			return channel.Slack.Retries
		}
	case model.ChannelLog:
		return 0
	}
	return defaultRetries
}

const defaultRetries = 2
