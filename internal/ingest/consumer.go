package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/detector"
	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/monitor"
)

const (
	logStreamName   = "LOGS"
	logEntrySubject = "logs.entry"

	durableName = "alert-pipeline"
)

// Consumer pulls log entries off the log stream, classifies them, and hands
// detected critical errors to the alert manager
type Consumer struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	detector *detector.Detector
	manager  *monitor.AlertManager
	config   monitor.ConfigProvider

	sub *nats.Subscription
}

// NewConsumer creates a log entry consumer
func NewConsumer(js nats.JetStreamContext, det *detector.Detector, manager *monitor.AlertManager, config monitor.ConfigProvider, logger *zap.Logger) *Consumer {
	return &Consumer{
		logger:   logger.Named("ingest"),
		js:       js,
		detector: det,
		manager:  manager,
		config:   config,
	}
}

// Start creates the log stream and subscribes the durable consumer
func (c *Consumer) Start(ctx context.Context) error {
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:     logStreamName,
		Subjects: []string{"logs.>"},
		Storage:  nats.FileStorage,
	}, nats.Context(ctx))
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("create log stream: %w", err)
	}

	sub, err := c.js.Subscribe(logEntrySubject, c.handle, nats.Durable(durableName))
	if err != nil {
		return fmt.Errorf("subscribe to log entries: %w", err)
	}
	c.sub = sub

	c.logger.Info("Log consumer started",
		zap.String("stream", logStreamName),
		zap.String("subject", logEntrySubject))
	return nil
}

// Stop unsubscribes the consumer
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to unsubscribe log consumer", zap.Error(err))
		}
	}
}

// Publish puts one log entry onto the log stream
func (c *Consumer) Publish(entry *model.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	if _, err := c.js.Publish(logEntrySubject, data); err != nil {
		return fmt.Errorf("publish log entry: %w", err)
	}
	return nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	var entry model.LogEntry
	if err := json.Unmarshal(msg.Data, &entry); err != nil {
		c.logger.Error("Failed to unmarshal log entry", zap.Error(err))
		msg.Ack()
		return
	}

	if alert := c.detector.Detect(&entry); alert != nil {
		if err := c.manager.ProcessAlert(context.Background(), alert, c.config()); err != nil {
			c.logger.Error("Failed to process alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err))
		}
	}

	msg.Ack()
}
