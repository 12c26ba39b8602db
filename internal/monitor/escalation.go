package monitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/storage"
)

// ConfigProvider returns the current alerting policy. Indirection keeps the
// sweep reading fresh config after reloads.
type ConfigProvider func() *model.AlertConfig

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Escalator runs the periodic escalation sweep and delivery-history cleanup
type Escalator struct {
	logger  *zap.Logger
	manager *AlertManager
	config  ConfigProvider
	cron    *cron.Cron

	history   storage.DeliveryHistoryStorage
	retention time.Duration
}

// NewEscalator creates an escalator driving the given manager
func NewEscalator(manager *AlertManager, config ConfigProvider, logger *zap.Logger) *Escalator {
	named := logger.Named("escalator")
	cl := &cronLogger{logger: named.Named("cron")}

	return &Escalator{
		logger:  named,
		manager: manager,
		config:  config,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cl)),
		),
	}
}

// SetDeliveryHistory enables nightly cleanup of old delivery records
func (e *Escalator) SetDeliveryHistory(h storage.DeliveryHistoryStorage, retention time.Duration) {
	e.history = h
	e.retention = retention
}

// Start schedules the escalation sweep (every minute) and the history
// cleanup (daily)
func (e *Escalator) Start() error {
	if _, err := e.cron.AddFunc("0 * * * * *", e.sweep); err != nil {
		return err
	}
	if _, err := e.cron.AddFunc("0 0 3 * * *", e.cleanup); err != nil {
		return err
	}

	e.cron.Start()
	e.logger.Info("Escalator started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (e *Escalator) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
}

func (e *Escalator) sweep() {
	escalated := e.manager.EscalateOverdue(context.Background(), e.config())
	if len(escalated) > 0 {
		e.logger.Info("Escalation sweep completed",
			zap.Int("escalated", len(escalated)),
			zap.Strings("alert_ids", escalated))
	}
}

func (e *Escalator) cleanup() {
	if e.history == nil || e.retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-e.retention)
	if err := e.history.DeleteBefore(context.Background(), cutoff); err != nil {
		e.logger.Error("Failed to clean up delivery history", zap.Error(err))
	}
}
