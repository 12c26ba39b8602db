package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/claudeflow/alerting/internal/model"
)

type memoryAlert struct {
	data      []byte
	expiresAt time.Time
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

type timelineEntry struct {
	id string
	ts time.Time
}

// MemoryStore is an in-process AlertStore used when Redis is not configured
// and in tests. Semantics mirror the Redis implementation, including record
// expiry.
type MemoryStore struct {
	mu        sync.Mutex
	alerts    map[string]memoryAlert
	counters  map[string]*memoryCounter
	timelines map[string][]timelineEntry
}

// NewMemoryStore creates an empty in-memory alert store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:    make(map[string]memoryAlert),
		counters:  make(map[string]*memoryCounter),
		timelines: make(map[string][]timelineEntry),
	}
}

// SetAlert implements AlertStore.SetAlert
func (s *MemoryStore) SetAlert(_ context.Context, alert *model.CriticalError, ttl time.Duration) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = memoryAlert{data: data, expiresAt: expiresAt}
	return nil
}

// GetAlert implements AlertStore.GetAlert
func (s *MemoryStore) GetAlert(_ context.Context, id string) (*model.CriticalError, error) {
	s.mu.Lock()
	rec, ok := s.alerts[id]
	if ok && !rec.expiresAt.IsZero() && time.Now().After(rec.expiresAt) {
		delete(s.alerts, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	var alert model.CriticalError
	if err := json.Unmarshal(rec.data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// IncrementCounter implements AlertStore.IncrementCounter
func (s *MemoryStore) IncrementCounter(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.value++
	return c.value, nil
}

// AppendTimeline implements AlertStore.AppendTimeline
func (s *MemoryStore) AppendTimeline(_ context.Context, key, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.timelines[key]
	for i := range entries {
		if entries[i].id == id {
			entries[i].ts = ts
			s.timelines[key] = entries
			return nil
		}
	}
	s.timelines[key] = append(entries, timelineEntry{id: id, ts: ts})
	return nil
}

// RecentTimeline implements AlertStore.RecentTimeline
func (s *MemoryStore) RecentTimeline(_ context.Context, key string, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	entries := append([]timelineEntry(nil), s.timelines[key]...)
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ts.After(entries[j].ts)
	})

	if int64(len(entries)) > limit {
		entries = entries[:limit]
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

// Close implements AlertStore.Close
func (s *MemoryStore) Close() error {
	return nil
}
