package store

import (
	"context"
	"errors"
	"time"

	"github.com/claudeflow/alerting/internal/model"
)

// ErrNotFound is returned when an alert record is missing or expired
var ErrNotFound = errors.New("alert record not found")

// AlertStore is the shared state backend for the alerting pipeline: alert
// records with retention, the hourly rate-limit counter, and the history
// timeline. Implementations must make IncrementCounter atomic; callers treat
// any store failure as fail-open.
type AlertStore interface {
	// SetAlert writes the alert record, replacing any previous version.
	// A non-positive ttl means no expiry.
	SetAlert(ctx context.Context, alert *model.CriticalError, ttl time.Duration) error

	// GetAlert reads one alert record. Returns ErrNotFound for missing or
	// expired records.
	GetAlert(ctx context.Context, id string) (*model.CriticalError, error)

	// IncrementCounter atomically increments the named counter and returns
	// the new value. The counter expires after window from its first
	// increment.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// AppendTimeline records the alert id in the time-sorted history
	// timeline. Re-adding an id updates its position.
	AppendTimeline(ctx context.Context, key, id string, ts time.Time) error

	// RecentTimeline returns up to limit alert ids, newest first.
	RecentTimeline(ctx context.Context, key string, limit int64) ([]string, error)

	Close() error
}
