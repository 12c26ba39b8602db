package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHistory(t *testing.T) *SQLiteDeliveryHistory {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	h, err := NewSQLiteDeliveryHistory(logger, filepath.Join(t.TempDir(), "deliveries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func record(id, alertID, status string, createdAt time.Time) *DeliveryRecord {
	return &DeliveryRecord{
		ID:          id,
		AlertID:     alertID,
		ChannelType: "webhook",
		ChannelName: "ops-webhook",
		Status:      status,
		RetryCount:  1,
		CreatedAt:   createdAt,
	}
}

func TestDeliveryHistory_StoreAndGet(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	rec := record("d-1", "alert-1", "sent", time.Now())
	rec.Error = ""
	require.NoError(t, h.Store(ctx, rec))

	got, err := h.Get(ctx, "d-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "alert-1", got.AlertID)
	require.Equal(t, "sent", got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.Empty(t, got.Error)

	got, err = h.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeliveryHistory_StoreFailureWithError(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	rec := record("d-2", "alert-1", "failed", time.Now())
	rec.Error = "webhook ops-webhook: http request failed with status 503 Service Unavailable"
	require.NoError(t, h.Store(ctx, rec))

	got, err := h.Get(ctx, "d-2")
	require.NoError(t, err)
	require.Contains(t, got.Error, "503")
}

func TestDeliveryHistory_ListAndCount(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, h.Store(ctx, record("d-1", "alert-1", "sent", base)))
	require.NoError(t, h.Store(ctx, record("d-2", "alert-1", "failed", base.Add(time.Second))))
	require.NoError(t, h.Store(ctx, record("d-3", "alert-2", "sent", base.Add(2*time.Second))))

	records, err := h.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "d-3", records[0].ID, "newest first")

	records, err = h.List(ctx, map[string]interface{}{"alert_id": "alert-1"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	count, err := h.Count(ctx, map[string]interface{}{"status": "failed"})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeliveryHistory_DeleteBefore(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, h.Store(ctx, record("d-old", "alert-1", "sent", old)))
	require.NoError(t, h.Store(ctx, record("d-new", "alert-1", "sent", time.Now())))

	require.NoError(t, h.DeleteBefore(ctx, time.Now().Add(-24*time.Hour)))

	count, err := h.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
