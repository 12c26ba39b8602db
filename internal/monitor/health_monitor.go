package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
)

// HealthThresholds bounds acceptable resource usage
type HealthThresholds struct {
	MaxCPUPercent    float64
	MaxMemoryPercent float64
}

// EmitFunc receives log entries produced by health checks
type EmitFunc func(entry *model.LogEntry)

// HealthMonitor samples host resource usage and feeds threshold breaches into
// the detection pipeline as error-level log entries
type HealthMonitor struct {
	logger     *zap.Logger
	interval   time.Duration
	thresholds HealthThresholds
	emit       EmitFunc
	stop       chan struct{}

	// probe functions, replaceable in tests
	cpuPercent    func(ctx context.Context) (float64, error)
	memoryPercent func(ctx context.Context) (float64, error)
}

// NewHealthMonitor creates a health monitor emitting entries through emit
func NewHealthMonitor(interval time.Duration, thresholds HealthThresholds, emit EmitFunc, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		logger:     logger.Named("health-monitor"),
		interval:   interval,
		thresholds: thresholds,
		emit:       emit,
		stop:       make(chan struct{}),

		cpuPercent: func(ctx context.Context) (float64, error) {
			percents, err := cpu.PercentWithContext(ctx, time.Second, false)
			if err != nil {
				return 0, err
			}
			if len(percents) == 0 {
				return 0, errors.New("no cpu samples returned")
			}
			return percents[0], nil
		},
		memoryPercent: func(ctx context.Context) (float64, error) {
			info, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return info.UsedPercent, nil
		},
	}
}

// Start starts the sampling loop
func (h *HealthMonitor) Start(ctx context.Context) error {
	h.logger.Info("Starting health monitor",
		zap.Duration("interval", h.interval),
		zap.Float64("max_cpu_percent", h.thresholds.MaxCPUPercent),
		zap.Float64("max_memory_percent", h.thresholds.MaxMemoryPercent))

	go h.sampleLoop(ctx)
	return nil
}

// Stop stops the sampling loop
func (h *HealthMonitor) Stop() {
	h.logger.Info("Stopping health monitor")
	close(h.stop)
}

func (h *HealthMonitor) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthMonitor) check(ctx context.Context) {
	cpuUsage, err := h.cpuPercent(ctx)
	if err != nil {
		h.logger.Error("Failed to get CPU usage", zap.Error(err))
		return
	}

	memUsage, err := h.memoryPercent(ctx)
	if err != nil {
		h.logger.Error("Failed to get memory usage", zap.Error(err))
		return
	}

	h.logger.Debug("Health sample collected",
		zap.Float64("cpu_usage", cpuUsage),
		zap.Float64("memory_usage", memUsage))

	if max := h.thresholds.MaxCPUPercent; max > 0 && cpuUsage > max {
		h.report(fmt.Sprintf("System health check failed: cpu usage %.1f%% exceeds threshold %.1f%%", cpuUsage, max),
			map[string]interface{}{
				"resource":  "cpu",
				"usage":     cpuUsage,
				"threshold": max,
			})
	}

	if max := h.thresholds.MaxMemoryPercent; max > 0 && memUsage > max {
		h.report(fmt.Sprintf("System health check failed: memory usage %.1f%% exceeds threshold %.1f%%", memUsage, max),
			map[string]interface{}{
				"resource":  "memory",
				"usage":     memUsage,
				"threshold": max,
			})
	}
}

func (h *HealthMonitor) report(message string, meta map[string]interface{}) {
	if h.emit == nil {
		return
	}
	h.emit(&model.LogEntry{
		Level:     model.LogLevelError,
		Message:   message,
		Timestamp: time.Now(),
		Meta:      meta,
	})
}
