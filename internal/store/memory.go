package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory
type MemoryStore struct {
	records map[string][]ActionRecord
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]ActionRecord),
	}
}

func (s *MemoryStore) LastAction(ctx context.Context, managerKey string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, r := range s.records[managerKey] {
		if r.ExecutedAt.After(last) {
			last = r.ExecutedAt
		}
	}
	return last, nil
}

func (s *MemoryStore) RecordAction(ctx context.Context, rec ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ManagerKey] = append(s.records[rec.ManagerKey], rec)
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, managerKey string, limit int) ([]ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]ActionRecord(nil), s.records[managerKey]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
