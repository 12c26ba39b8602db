package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/config"
	"github.com/claudeflow/alerting/internal/detector"
	"github.com/claudeflow/alerting/internal/ingest"
	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/monitor"
	"github.com/claudeflow/alerting/internal/storage"
	"github.com/claudeflow/alerting/internal/store"
	"github.com/claudeflow/alerting/internal/transport"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	// Create JetStream context
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Alert store: Redis when reachable, in-memory otherwise
	var alertStore store.AlertStore
	redisStore, err := store.NewRedisStore(store.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory alert store",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		alertStore = store.NewMemoryStore()
	} else {
		defer redisStore.Close()
		alertStore = redisStore
	}

	// Delivery history storage
	history, err := storage.NewSQLiteDeliveryHistory(logger, cfg.History.Path)
	if err != nil {
		logger.Fatal("Failed to create delivery history storage", zap.Error(err))
	}
	defer history.Close()

	// Register transports and validate channel configs
	transports := transport.Registry{
		model.ChannelWebhook: transport.NewWebhookTransport(logger),
		model.ChannelSlack:   transport.NewSlackTransport(logger),
		model.ChannelLog:     transport.NewLogTransport(logger),
	}
	if disabled := config.ValidateChannels(&cfg.Alerts, transports, logger); disabled > 0 {
		logger.Warn("Some alert channels were disabled during validation",
			zap.Int("disabled", disabled))
	}

	alertConfig := func() *model.AlertConfig { return &cfg.Alerts }

	// Alert manager
	manager := monitor.NewAlertManager(logger, alertStore, transports)
	manager.SetJetStream(js)
	manager.SetDeliveryHistory(history)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("Failed to start alert manager", zap.Error(err))
	}

	// Log ingestion
	det := detector.New(logger, cfg.App.Source, cfg.App.Environment)
	consumer := ingest.NewConsumer(js, det, manager, alertConfig, logger)
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("Failed to start log consumer", zap.Error(err))
	}
	defer consumer.Stop()

	// Escalation sweep and history cleanup
	escalator := monitor.NewEscalator(manager, alertConfig, logger)
	escalator.SetDeliveryHistory(history, time.Duration(cfg.History.RetentionDays)*24*time.Hour)
	if err := escalator.Start(); err != nil {
		logger.Fatal("Failed to start escalator", zap.Error(err))
	}
	defer escalator.Stop()

	// Host health monitoring feeds back into the ingestion pipeline
	if cfg.Health.Enabled {
		healthMonitor := monitor.NewHealthMonitor(cfg.Health.Interval, monitor.HealthThresholds{
			MaxCPUPercent:    cfg.Health.MaxCPUPercent,
			MaxMemoryPercent: cfg.Health.MaxMemoryPercent,
		}, func(entry *model.LogEntry) {
			if err := consumer.Publish(entry); err != nil {
				logger.Error("Failed to publish health entry", zap.Error(err))
			}
		}, logger)

		if err := healthMonitor.Start(ctx); err != nil {
			logger.Fatal("Failed to start health monitor", zap.Error(err))
		}
		defer healthMonitor.Stop()
	}

	// Metrics endpoint
	metricsServer := &http.Server{
		Addr:    cfg.HTTP.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("Metrics endpoint listening",
			zap.String("addr", cfg.HTTP.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown failed", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
