package planstore

import (
	"context"
	"log/slog"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	planID string
	ok     bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.planID, s.ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, planID string) error {
	s.mu.Lock()
	s.planID, s.ok = planID, true
	s.mu.Unlock()

	slog.Debug("Plan id cached", "plan_id", planID)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.planID, s.ok = "", false
	s.mu.Unlock()
	return nil
}
