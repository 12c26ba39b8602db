package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
	"github.com/claudeflow/alerting/internal/transport"
)

// AppConfig identifies the deployment
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Source      string `mapstructure:"source"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig configures the shared alert store
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// HTTPConfig configures the metrics endpoint
type HTTPConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// HistoryConfig configures the delivery history database
type HistoryConfig struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// HealthConfig configures host resource monitoring
type HealthConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	MaxCPUPercent    float64       `mapstructure:"max_cpu_percent"`
	MaxMemoryPercent float64       `mapstructure:"max_memory_percent"`
}

// ServerConfig is the full server configuration
type ServerConfig struct {
	App     AppConfig         `mapstructure:"app"`
	NATS    NATSConfig        `mapstructure:"nats"`
	Redis   RedisConfig       `mapstructure:"redis"`
	HTTP    HTTPConfig        `mapstructure:"http"`
	History HistoryConfig     `mapstructure:"history"`
	Health  HealthConfig      `mapstructure:"health"`
	Alerts  model.AlertConfig `mapstructure:"alerts"`
}

// Load reads config.yaml from the given directory
func Load(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetDefault("app.name", "claudeflow-alerting")
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.source", "claudeflow")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("http.metrics_addr", ":9095")
	v.SetDefault("history.path", "delivery_history.db")
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("health.interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateChannels disables channels whose configuration the registered
// transport rejects and returns how many were disabled. A bad channel never
// prevents startup; it is just taken out of rotation.
func ValidateChannels(cfg *model.AlertConfig, transports transport.Registry, logger *zap.Logger) int {
	disabled := 0
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if !ch.Enabled {
			continue
		}

		tr, ok := transports[ch.Type]
		if !ok {
			logger.Warn("Disabling channel with unknown type",
				zap.String("channel", ch.Name),
				zap.String("type", string(ch.Type)))
			ch.Enabled = false
			disabled++
			continue
		}

		if !tr.ValidateConfig(ch) {
			logger.Warn("Disabling channel with invalid configuration",
				zap.String("channel", ch.Name),
				zap.String("type", string(ch.Type)))
			ch.Enabled = false
			disabled++
		}
	}
	return disabled
}
