package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/transport"
)

const sampleConfig = `
app:
  name: claudeflow-alerting
  environment: staging
  source: api-server

nats:
  url: nats://nats.internal:4222
  max_reconnects: 10

redis:
  addr: redis.internal:6379
  key_prefix: "claudeflow:alerts"

health:
  enabled: true
  interval: 15s
  max_cpu_percent: 90
  max_memory_percent: 85

alerts:
  enabled: true
  rate_limiting:
    max_alerts_per_hour: 50
  deduplication:
    enabled: true
    window_minutes: 15
  channels:
    - type: webhook
      name: ops-webhook
      enabled: true
      error_types: [database-connection-failure]
      webhook:
        url: https://hooks.example.com/alerts
        retries: 2
        authentication:
          type: bearer
          token: secret
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.App.Environment)
	require.Equal(t, "api-server", cfg.App.Source)
	require.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
	require.Equal(t, 10, cfg.NATS.MaxReconnects)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 15*time.Second, cfg.Health.Interval)
	require.Equal(t, 90.0, cfg.Health.MaxCPUPercent)

	require.True(t, cfg.Alerts.Enabled)
	require.Equal(t, 50, cfg.Alerts.RateLimiting.MaxAlertsPerHour)
	require.Equal(t, 15, cfg.Alerts.Deduplication.WindowMinutes)
	require.Len(t, cfg.Alerts.Channels, 1)

	ch := cfg.Alerts.Channels[0]
	require.Equal(t, model.ChannelWebhook, ch.Type)
	require.True(t, ch.Enabled)
	require.NotNil(t, ch.Webhook)
	require.Equal(t, "https://hooks.example.com/alerts", ch.Webhook.URL)
	require.Equal(t, 2, ch.Webhook.Retries)
	require.NotNil(t, ch.Webhook.Authentication)
	require.Equal(t, model.AuthBearer, ch.Webhook.Authentication.Type)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "alerts:\n  enabled: true\n"))
	require.NoError(t, err)

	require.Equal(t, "claudeflow-alerting", cfg.App.Name)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	require.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	require.Equal(t, ":9095", cfg.HTTP.MetricsAddr)
	require.Equal(t, 30, cfg.History.RetentionDays)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestValidateChannels(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	transports := transport.Registry{
		model.ChannelWebhook: transport.NewWebhookTransport(logger),
		model.ChannelLog:     transport.NewLogTransport(logger),
	}

	cfg := &model.AlertConfig{
		Enabled: true,
		Channels: []model.AlertChannel{
			{
				Type:       model.ChannelWebhook,
				Name:       "good-webhook",
				Enabled:    true,
				ErrorTypes: []model.CriticalErrorType{model.ErrorTypeDatabaseConnection},
				Webhook:    &model.WebhookConfig{URL: "https://hooks.example.com/alerts"},
			},
			{
				Type:       model.ChannelWebhook,
				Name:       "bad-webhook",
				Enabled:    true,
				ErrorTypes: []model.CriticalErrorType{model.ErrorTypeDatabaseConnection},
				Webhook:    &model.WebhookConfig{URL: "not-a-valid-url"},
			},
			{
				Type:       model.ChannelSlack,
				Name:       "no-transport",
				Enabled:    true,
				ErrorTypes: []model.CriticalErrorType{model.ErrorTypeDatabaseConnection},
			},
			{
				Type:    model.ChannelLog,
				Name:    "already-off",
				Enabled: false,
			},
		},
	}

	disabled := ValidateChannels(cfg, transports, logger)
	require.Equal(t, 2, disabled)
	require.True(t, cfg.Channels[0].Enabled)
	require.False(t, cfg.Channels[1].Enabled)
	require.False(t, cfg.Channels[2].Enabled)
	require.False(t, cfg.Channels[3].Enabled)
}
