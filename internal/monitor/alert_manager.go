package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/metrics"
	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/storage"
	"github.com/claudeflow/alerting/internal/store"
	"github.com/claudeflow/alerting/internal/transport"
)

const (
	alertStreamName = "ALERTS"

	rateLimitKey = "rate:hourly"
	timelineKey  = "timeline"

	// how long mirrored alert records stay readable in the store
	alertRetention = 7 * 24 * time.Hour
)

// AlertManager owns the authoritative state of active alerts: it
// deduplicates, rate-limits, fans deliveries out to channels, and maintains
// the queryable history timeline. Shared in-process state is mutex-guarded;
// the cross-deployment rate counter lives in the store and is incremented
// atomically.
type AlertManager struct {
	logger     *zap.Logger
	store      store.AlertStore
	transports transport.Registry
	metrics    *metrics.Pipeline

	js      nats.JetStreamContext
	history storage.DeliveryHistoryStorage

	mu     sync.Mutex
	alerts map[string]*model.CriticalError
	order  []string
	dedup  map[string]string
}

// NewAlertManager creates an alert manager backed by the given store and
// transports
func NewAlertManager(logger *zap.Logger, alertStore store.AlertStore, transports transport.Registry) *AlertManager {
	return &AlertManager{
		logger:     logger.Named("alert-manager"),
		store:      alertStore,
		transports: transports,
		metrics:    metrics.NewPipeline(),
		alerts:     make(map[string]*model.CriticalError),
		dedup:      make(map[string]string),
	}
}

// SetJetStream enables publication of processed alerts to the alert stream
func (m *AlertManager) SetJetStream(js nats.JetStreamContext) {
	m.js = js
}

// SetDeliveryHistory enables durable recording of delivery outcomes
func (m *AlertManager) SetDeliveryHistory(h storage.DeliveryHistoryStorage) {
	m.history = h
}

// Start creates the alert stream when JetStream is configured
func (m *AlertManager) Start(ctx context.Context) error {
	if m.js == nil {
		return nil
	}

	_, err := m.js.AddStream(&nats.StreamConfig{
		Name:     alertStreamName,
		Subjects: []string{"alert.*"},
		Storage:  nats.FileStorage,
	}, nats.Context(ctx))
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("create alert stream: %w", err)
	}

	m.logger.Info("Alert manager started")
	return nil
}

// DedupKey derives the deduplication key for an error: its type plus a
// fingerprint of message and source
func DedupKey(alert *model.CriticalError) string {
	h := fnv.New32a()
	h.Write([]byte(alert.Message))
	h.Write([]byte("|"))
	h.Write([]byte(alert.Source))
	return fmt.Sprintf("%s:%08x", alert.Type, h.Sum32())
}

// ProcessAlert is the pipeline entry point for one detected error. Delivery
// failures never propagate to the caller; only nothing-can-proceed conditions
// (nil input) return an error.
func (m *AlertManager) ProcessAlert(ctx context.Context, alert *model.CriticalError, cfg *model.AlertConfig) error {
	if alert == nil {
		return fmt.Errorf("nil alert")
	}
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	now := time.Now()

	m.mu.Lock()
	if cfg.Deduplication.Enabled {
		key := DedupKey(alert)
		if id, ok := m.dedup[key]; ok {
			if existing, ok := m.alerts[id]; ok && !existing.Resolved &&
				now.Sub(existing.LastOccurrence) <= cfg.DedupWindow() {
				existing.OccurrenceCount++
				existing.LastOccurrence = now
				snapshot := *existing
				m.mu.Unlock()

				m.metrics.AlertsDeduplicated.Inc()
				m.logger.Debug("Merged duplicate occurrence",
					zap.String("alert_id", snapshot.ID),
					zap.Int("occurrence_count", snapshot.OccurrenceCount))
				m.mirror(ctx, &snapshot)
				return nil
			}
		}
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.OccurrenceCount == 0 {
		alert.OccurrenceCount = 1
	}
	if alert.FirstOccurrence.IsZero() {
		alert.FirstOccurrence = now
	}
	if alert.LastOccurrence.IsZero() {
		alert.LastOccurrence = now
	}
	m.alerts[alert.ID] = alert
	m.order = append(m.order, alert.ID)
	m.dedup[DedupKey(alert)] = alert.ID
	// the record in m.alerts may be mutated by concurrent duplicates, so
	// everything past the lock works on a value snapshot
	snapshot := *alert
	m.mu.Unlock()

	m.metrics.AlertsProcessed.WithLabelValues(string(snapshot.Type), string(snapshot.Severity)).Inc()
	m.mirror(ctx, &snapshot)
	m.publish(&snapshot)

	if m.suppressed(ctx, &snapshot, cfg) {
		return nil
	}

	m.dispatchAll(ctx, &snapshot, m.selectChannels(cfg, snapshot.Type))
	return nil
}

// suppressed applies the hourly rate limit and the per-type cooldown. Store
// failures fail open: a real incident is never dropped because the limiter
// state was unreadable.
func (m *AlertManager) suppressed(ctx context.Context, alert *model.CriticalError, cfg *model.AlertConfig) bool {
	if max := cfg.RateLimiting.MaxAlertsPerHour; max > 0 {
		count, err := m.store.IncrementCounter(ctx, rateLimitKey, time.Hour)
		if err != nil {
			m.metrics.StoreFailures.WithLabelValues("rate_limit").Inc()
			m.logger.Warn("Rate limit check failed, failing open", zap.Error(err))
		} else if count > int64(max) {
			m.metrics.AlertsRateLimited.Inc()
			m.logger.Warn("Alert suppressed by hourly rate limit",
				zap.String("alert_id", alert.ID),
				zap.Int64("count", count),
				zap.Int("max_per_hour", max))
			return true
		}
	}

	if cooldown := cfg.RateLimiting.CooldownMinutes; cooldown > 0 {
		key := "cooldown:" + string(alert.Type)
		count, err := m.store.IncrementCounter(ctx, key, time.Duration(cooldown)*time.Minute)
		if err != nil {
			m.metrics.StoreFailures.WithLabelValues("cooldown").Inc()
			m.logger.Warn("Cooldown check failed, failing open", zap.Error(err))
		} else if count > 1 {
			m.metrics.AlertsRateLimited.Inc()
			m.logger.Info("Alert suppressed by per-type cooldown",
				zap.String("alert_id", alert.ID),
				zap.String("type", string(alert.Type)))
			return true
		}
	}

	return false
}

func (m *AlertManager) selectChannels(cfg *model.AlertConfig, errType model.CriticalErrorType) []*model.AlertChannel {
	var selected []*model.AlertChannel
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Enabled && ch.Accepts(errType) {
			selected = append(selected, ch)
		}
	}
	return selected
}

// dispatchAll fans deliveries out concurrently and waits for all of them to
// settle. One channel's failure never blocks the others.
func (m *AlertManager) dispatchAll(ctx context.Context, alert *model.CriticalError, channels []*model.AlertChannel) {
	var wg sync.WaitGroup
	for _, ch := range channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.dispatch(ctx, ch, alert)
		}()
	}
	wg.Wait()
}

func (m *AlertManager) dispatch(ctx context.Context, channel *model.AlertChannel, alert *model.CriticalError) {
	tr, ok := m.transports[channel.Type]
	if !ok {
		m.logger.Warn("No transport registered for channel type",
			zap.String("channel", channel.Name),
			zap.String("type", string(channel.Type)))
		return
	}

	notification := &model.AlertNotification{
		ID:          uuid.New().String(),
		AlertID:     alert.ID,
		ChannelType: channel.Type,
		ChannelName: channel.Name,
		Status:      model.NotificationPending,
		MaxRetries:  transport.Retries(channel),
		CreatedAt:   time.Now(),
	}

	started := time.Now()
	err := tr.Send(ctx, channel, alert, notification)
	m.metrics.DeliveryDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		m.metrics.Deliveries.WithLabelValues(string(channel.Type), string(model.NotificationFailed)).Inc()
		m.logger.Error("Alert delivery failed",
			zap.String("alert_id", alert.ID),
			zap.String("channel", channel.Name),
			zap.Int("retry_count", notification.RetryCount),
			zap.Error(err))
	} else {
		m.metrics.Deliveries.WithLabelValues(string(channel.Type), string(model.NotificationSent)).Inc()
	}

	m.recordDelivery(ctx, notification, err)
}

func (m *AlertManager) recordDelivery(ctx context.Context, notification *model.AlertNotification, sendErr error) {
	if m.history == nil {
		return
	}

	rec := &storage.DeliveryRecord{
		ID:          notification.ID,
		AlertID:     notification.AlertID,
		ChannelType: string(notification.ChannelType),
		ChannelName: notification.ChannelName,
		Status:      string(notification.Status),
		RetryCount:  notification.RetryCount,
		CreatedAt:   notification.CreatedAt,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}

	if err := m.history.Store(ctx, rec); err != nil {
		m.logger.Warn("Failed to record delivery outcome", zap.Error(err))
	}
}

// mirror persists the alert record and its timeline position. Failures are
// logged and swallowed: the in-memory table remains authoritative.
func (m *AlertManager) mirror(ctx context.Context, alert *model.CriticalError) {
	if err := m.store.SetAlert(ctx, alert, alertRetention); err != nil {
		m.metrics.StoreFailures.WithLabelValues("set_alert").Inc()
		m.logger.Warn("Failed to mirror alert to store",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return
	}
	if err := m.store.AppendTimeline(ctx, timelineKey, alert.ID, alert.LastOccurrence); err != nil {
		m.metrics.StoreFailures.WithLabelValues("timeline").Inc()
		m.logger.Warn("Failed to append alert to timeline",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
	}
}

func (m *AlertManager) publish(alert *model.CriticalError) {
	if m.js == nil {
		return
	}

	data, err := json.Marshal(alert)
	if err != nil {
		m.logger.Error("Failed to marshal alert", zap.Error(err))
		return
	}

	if _, err := m.js.Publish("alert."+string(alert.Type), data); err != nil {
		m.logger.Error("Failed to publish alert",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
	}
}

// ResolveAlert marks an alert resolved. It returns true when the alert is
// known, false otherwise. Resolving an already-resolved alert is a no-op that
// still returns true.
func (m *AlertManager) ResolveAlert(ctx context.Context, id, resolvedBy string) bool {
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return false
	}

	if !alert.Resolved {
		now := time.Now()
		alert.Resolved = true
		alert.ResolvedBy = resolvedBy
		alert.ResolvedAt = &now
		m.metrics.AlertsResolved.Inc()
	}
	snapshot := *alert
	m.mu.Unlock()

	m.logger.Info("Alert resolved",
		zap.String("alert_id", id),
		zap.String("resolved_by", resolvedBy))
	m.mirror(ctx, &snapshot)
	return true
}

// ActiveAlerts returns all unresolved alerts in insertion order
func (m *AlertManager) ActiveAlerts() []*model.CriticalError {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []*model.CriticalError
	for _, id := range m.order {
		if alert, ok := m.alerts[id]; ok && !alert.Resolved {
			active = append(active, alert)
		}
	}
	return active
}

// AlertHistory returns up to limit alerts from the store timeline, newest
// first. Ids whose backing record expired are skipped, so the result may be
// shorter than limit.
func (m *AlertManager) AlertHistory(ctx context.Context, limit int64) ([]*model.CriticalError, error) {
	ids, err := m.store.RecentTimeline(ctx, timelineKey, limit)
	if err != nil {
		return nil, fmt.Errorf("read alert timeline: %w", err)
	}

	history := make([]*model.CriticalError, 0, len(ids))
	for _, id := range ids {
		alert, err := m.store.GetAlert(ctx, id)
		if err != nil {
			if err != store.ErrNotFound {
				m.logger.Warn("Failed to read alert record",
					zap.String("alert_id", id),
					zap.Error(err))
			}
			continue
		}
		history = append(history, alert)
	}
	return history, nil
}

// EscalateOverdue re-notifies escalation channels about alerts that stayed
// unresolved past the configured threshold. It returns the ids of alerts
// escalated in this sweep.
func (m *AlertManager) EscalateOverdue(ctx context.Context, cfg *model.AlertConfig) []string {
	if cfg == nil || !cfg.Enabled || !cfg.Escalation.Enabled {
		return nil
	}
	threshold := time.Duration(cfg.Escalation.EscalateAfterMinutes) * time.Minute
	if threshold <= 0 {
		return nil
	}

	now := time.Now()

	m.mu.Lock()
	var overdue []model.CriticalError
	for _, id := range m.order {
		alert, ok := m.alerts[id]
		if !ok || alert.Resolved || alert.Escalated {
			continue
		}
		if now.Sub(alert.FirstOccurrence) >= threshold {
			alert.Escalated = true
			overdue = append(overdue, *alert)
		}
	}
	m.mu.Unlock()

	channels := m.escalationChannels(cfg)
	var escalated []string
	for i := range overdue {
		alert := &overdue[i]
		m.metrics.AlertsEscalated.Inc()
		m.logger.Warn("Escalating unresolved alert",
			zap.String("alert_id", alert.ID),
			zap.String("type", string(alert.Type)),
			zap.Duration("unresolved_for", now.Sub(alert.FirstOccurrence)))
		m.dispatchAll(ctx, alert, channels)
		m.mirror(ctx, alert)
		escalated = append(escalated, alert.ID)
	}
	return escalated
}

func (m *AlertManager) escalationChannels(cfg *model.AlertConfig) []*model.AlertChannel {
	var channels []*model.AlertChannel
	for _, name := range cfg.Escalation.EscalationChannels {
		for i := range cfg.Channels {
			ch := &cfg.Channels[i]
			if ch.Name == name && ch.Enabled {
				channels = append(channels, ch)
			}
		}
	}
	return channels
}
