package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/claudeflow/alerting/internal/model"
)

func TestMemoryStore_SetGetAlert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	alert := &model.CriticalError{
		ID:              "alert-1",
		Type:            model.ErrorTypeDatabaseConnection,
		Severity:        model.SeverityCritical,
		Message:         "Database connection failed",
		OccurrenceCount: 1,
	}

	require.NoError(t, s.SetAlert(ctx, alert, 0))

	got, err := s.GetAlert(ctx, "alert-1")
	require.NoError(t, err)
	require.Equal(t, alert.Type, got.Type)
	require.Equal(t, alert.Message, got.Message)

	_, err = s.GetAlert(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AlertExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	alert := &model.CriticalError{ID: "short-lived"}
	require.NoError(t, s.SetAlert(ctx, alert, 10*time.Millisecond))

	_, err := s.GetAlert(ctx, "short-lived")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = s.GetAlert(ctx, "short-lived")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_IncrementCounter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := s.IncrementCounter(ctx, "rate:hourly", time.Hour)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}
}

func TestMemoryStore_CounterWindowReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.IncrementCounter(ctx, "rate:short", 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	time.Sleep(20 * time.Millisecond)

	n, err = s.IncrementCounter(ctx, "rate:short", 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "counter must reset after its window elapses")
}

func TestMemoryStore_TimelineNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "a", base))
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "b", base.Add(time.Second)))
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "c", base.Add(2*time.Second)))

	ids, err := s.RecentTimeline(ctx, "timeline", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, ids)

	ids, err = s.RecentTimeline(ctx, "timeline", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, ids)
}

func TestMemoryStore_TimelineReAddUpdatesPosition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "a", base))
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "b", base.Add(time.Second)))
	require.NoError(t, s.AppendTimeline(ctx, "timeline", "a", base.Add(2*time.Second)))

	ids, err := s.RecentTimeline(ctx, "timeline", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)
}
