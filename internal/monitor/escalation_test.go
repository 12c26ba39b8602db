package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/store"
	"github.com/claudeflow/alerting/internal/transport"
)

func TestEscalator_SweepEscalatesOverdueAlerts(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	recorder := &recordingTransport{}
	manager := NewAlertManager(logger, store.NewMemoryStore(), transport.Registry{
		model.ChannelWebhook: recorder,
	})
	ctx := context.Background()

	cfg := testAlertConfig()
	cfg.Escalation = model.EscalationConfig{
		Enabled:              true,
		EscalateAfterMinutes: 30,
		EscalationChannels:   []string{"ops-webhook"},
	}

	alert := newAlert(model.ErrorTypeDatabaseConnection, "Database connection failed: timeout")
	require.NoError(t, manager.ProcessAlert(ctx, alert, cfg))
	require.Equal(t, 1, recorder.count())

	manager.mu.Lock()
	manager.alerts[alert.ID].FirstOccurrence = time.Now().Add(-time.Hour)
	manager.mu.Unlock()

	escalator := NewEscalator(manager, func() *model.AlertConfig { return cfg }, logger)
	escalator.sweep()

	require.Equal(t, 2, recorder.count())
	require.True(t, alert.Escalated)
}

func TestEscalator_StartAndStop(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	manager := NewAlertManager(logger, store.NewMemoryStore(), transport.Registry{})

	escalator := NewEscalator(manager, testAlertConfig, logger)
	require.NoError(t, escalator.Start())
	escalator.Stop()
}
