package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/detector"
	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/monitor"
	"github.com/claudeflow/alerting/internal/store"
	"github.com/claudeflow/alerting/internal/testutil"
	"github.com/claudeflow/alerting/internal/transport"
)

type captureTransport struct {
	mu    sync.Mutex
	sends int
}

func (c *captureTransport) Send(_ context.Context, _ *model.AlertChannel, _ *model.CriticalError, notification *model.AlertNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	notification.Status = model.NotificationSent
	return nil
}

func (c *captureTransport) ValidateConfig(_ *model.AlertChannel) bool { return true }

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

func TestConsumer_DetectsAndProcessesLogEntries(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	capture := &captureTransport{}
	manager := monitor.NewAlertManager(logger, store.NewMemoryStore(), transport.Registry{
		model.ChannelWebhook: capture,
	})

	cfg := &model.AlertConfig{
		Enabled: true,
		Channels: []model.AlertChannel{
			{
				Type:       model.ChannelWebhook,
				Name:       "ops-webhook",
				Enabled:    true,
				ErrorTypes: []model.CriticalErrorType{model.ErrorTypeDatabaseConnection},
			},
		},
		RateLimiting:  model.RateLimitConfig{MaxAlertsPerHour: 100},
		Deduplication: model.DeduplicationConfig{Enabled: true, WindowMinutes: 5},
	}

	det := detector.New(logger, "api-server", "production")
	consumer := NewConsumer(js, det, manager, func() *model.AlertConfig { return cfg }, logger)

	ctx := context.Background()
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()
	require.NoError(t, testutil.WaitForStream(t, js, logStreamName, 5*time.Second))

	// A critical database error, an informational line, and an error that
	// matches no pattern
	require.NoError(t, consumer.Publish(&model.LogEntry{
		Level:     model.LogLevelError,
		Message:   "Database connection failed: connect ETIMEDOUT",
		Timestamp: time.Now(),
	}))
	require.NoError(t, consumer.Publish(&model.LogEntry{
		Level:     model.LogLevelInfo,
		Message:   "Database connection failed: retry scheduled",
		Timestamp: time.Now(),
	}))
	require.NoError(t, consumer.Publish(&model.LogEntry{
		Level:     model.LogLevelError,
		Message:   "Template rendering failed",
		Timestamp: time.Now(),
	}))

	require.Eventually(t, func() bool {
		return len(manager.ActiveAlerts()) == 1 && capture.count() == 1
	}, 5*time.Second, 50*time.Millisecond)

	active := manager.ActiveAlerts()
	require.Equal(t, model.ErrorTypeDatabaseConnection, active[0].Type)
	require.Equal(t, "api-server", active[0].Source)
}

func TestConsumer_DuplicateEntriesMerge(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	capture := &captureTransport{}
	manager := monitor.NewAlertManager(logger, store.NewMemoryStore(), transport.Registry{
		model.ChannelWebhook: capture,
	})

	cfg := &model.AlertConfig{
		Enabled: true,
		Channels: []model.AlertChannel{
			{
				Type:       model.ChannelWebhook,
				Name:       "ops-webhook",
				Enabled:    true,
				ErrorTypes: []model.CriticalErrorType{model.ErrorTypeRedisConnection},
			},
		},
		RateLimiting:  model.RateLimitConfig{MaxAlertsPerHour: 100},
		Deduplication: model.DeduplicationConfig{Enabled: true, WindowMinutes: 5},
	}

	det := detector.New(logger, "api-server", "production")
	consumer := NewConsumer(js, det, manager, func() *model.AlertConfig { return cfg }, logger)

	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, consumer.Publish(&model.LogEntry{
			Level:     model.LogLevelError,
			Message:   "Redis connection refused",
			Timestamp: time.Now(),
		}))
	}

	require.Eventually(t, func() bool {
		active := manager.ActiveAlerts()
		return len(active) == 1 && active[0].OccurrenceCount == 3
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, 1, capture.count())
}
