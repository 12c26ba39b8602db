package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/claudeflow/alerting/internal/model"
)

// RedisConfig configures Redis access for shared alert state
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements AlertStore on Redis. Alert records are JSON values
// with a TTL, counters use INCR with EXPIRE, and the history timeline is a
// sorted set scored by occurrence time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed alert store and verifies
// connectivity with a ping.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "claudeflow:alerts"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis alert store: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// SetAlert implements AlertStore.SetAlert
func (s *RedisStore) SetAlert(ctx context.Context, alert *model.CriticalError, ttl time.Duration) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
	}
	if ttl <= 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.alertKey(alert.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("write alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert implements AlertStore.GetAlert
func (s *RedisStore) GetAlert(ctx context.Context, id string) (*model.CriticalError, error) {
	data, err := s.client.Get(ctx, s.alertKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read alert %s: %w", id, err)
	}

	var alert model.CriticalError
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("decode alert %s: %w", id, err)
	}
	return &alert, nil
}

// IncrementCounter implements AlertStore.IncrementCounter. EXPIRE NX keeps
// the window anchored at the first increment.
func (s *RedisStore) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.prefixed(key))
	pipe.ExpireNX(ctx, s.prefixed(key), window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return incr.Val(), nil
}

// AppendTimeline implements AlertStore.AppendTimeline
func (s *RedisStore) AppendTimeline(ctx context.Context, key, id string, ts time.Time) error {
	err := s.client.ZAdd(ctx, s.prefixed(key), redis.Z{
		Score:  float64(ts.UnixNano()),
		Member: id,
	}).Err()
	if err != nil {
		return fmt.Errorf("append timeline %s: %w", key, err)
	}
	return nil
}

// RecentTimeline implements AlertStore.RecentTimeline
func (s *RedisStore) RecentTimeline(ctx context.Context, key string, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRevRange(ctx, s.prefixed(key), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read timeline %s: %w", key, err)
	}
	return ids, nil
}

// Close closes Redis resources
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) alertKey(id string) string {
	return s.prefix + ":alert:" + id
}

func (s *RedisStore) prefixed(key string) string {
	return s.prefix + ":" + key
}
