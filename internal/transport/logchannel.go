package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
)

// LogTransport writes alert notifications to the process log. It never fails
// and serves as a cheap always-on channel.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a log transport
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.Named("alert-log")}
}

// Send implements Transport.Send
func (l *LogTransport) Send(_ context.Context, channel *model.AlertChannel, alert *model.CriticalError, notification *model.AlertNotification) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("source", alert.Source),
		zap.String("environment", alert.Environment),
		zap.Int("occurrence_count", alert.OccurrenceCount),
		zap.String("channel", channel.Name),
	}

	switch alert.Severity {
	case model.SeverityCritical, model.SeverityHigh:
		l.logger.Error(alert.Message, fields...)
	case model.SeverityMedium:
		l.logger.Warn(alert.Message, fields...)
	default:
		l.logger.Info(alert.Message, fields...)
	}

	notification.Status = model.NotificationSent
	return nil
}

// ValidateConfig implements Transport.ValidateConfig. Log channels carry no
// required configuration.
func (l *LogTransport) ValidateConfig(_ *model.AlertChannel) bool {
	return true
}
