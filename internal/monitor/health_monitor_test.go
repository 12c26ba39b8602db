package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/detector"
	"github.com/claudeflow/alerting/internal/model"
)

func newTestHealthMonitor(t *testing.T, emit EmitFunc) *HealthMonitor {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewHealthMonitor(time.Minute, HealthThresholds{
		MaxCPUPercent:    90,
		MaxMemoryPercent: 85,
	}, emit, logger)
}

func TestHealthMonitor_WithinThresholds(t *testing.T) {
	var entries []*model.LogEntry
	h := newTestHealthMonitor(t, func(entry *model.LogEntry) { entries = append(entries, entry) })
	h.cpuPercent = func(context.Context) (float64, error) { return 42.0, nil }
	h.memoryPercent = func(context.Context) (float64, error) { return 60.0, nil }

	h.check(context.Background())
	require.Empty(t, entries)
}

func TestHealthMonitor_BreachesEmitErrorEntries(t *testing.T) {
	var entries []*model.LogEntry
	h := newTestHealthMonitor(t, func(entry *model.LogEntry) { entries = append(entries, entry) })
	h.cpuPercent = func(context.Context) (float64, error) { return 97.3, nil }
	h.memoryPercent = func(context.Context) (float64, error) { return 91.5, nil }

	h.check(context.Background())
	require.Len(t, entries, 2)

	require.Equal(t, model.LogLevelError, entries[0].Level)
	require.Contains(t, entries[0].Message, "System health check failed")
	require.Contains(t, entries[0].Message, "cpu usage 97.3%")
	require.Equal(t, "memory", entries[1].Meta["resource"])
}

func TestHealthMonitor_ProbeErrorEmitsNothing(t *testing.T) {
	var entries []*model.LogEntry
	h := newTestHealthMonitor(t, func(entry *model.LogEntry) { entries = append(entries, entry) })
	h.cpuPercent = func(context.Context) (float64, error) { return 0, errors.New("probe failed") }

	h.check(context.Background())
	require.Empty(t, entries)
}

func TestHealthMonitor_EntriesClassifyAsSystemHealthFailures(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	det := detector.New(logger, "api-server", "production")

	var detected []*model.CriticalError
	h := newTestHealthMonitor(t, func(entry *model.LogEntry) {
		if alert := det.Detect(entry); alert != nil {
			detected = append(detected, alert)
		}
	})
	h.cpuPercent = func(context.Context) (float64, error) { return 99.0, nil }
	h.memoryPercent = func(context.Context) (float64, error) { return 10.0, nil }

	h.check(context.Background())
	require.Len(t, detected, 1)
	require.Equal(t, model.ErrorTypeSystemHealth, detected[0].Type)
	require.Equal(t, model.SeverityMedium, detected[0].Severity)
}
