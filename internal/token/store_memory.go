package token

import (
	"context"
	"sync"

	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps the mint record in process memory. The record is
// stored by value so callers cannot mutate it behind the lock.
type InMemoryStore struct {
	mu   sync.RWMutex
	info *MintInfo
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateMintInfo(_ context.Context, info *MintInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info != nil {
		return sentinel.ErrConflict
	}
	value := *info
	s.info = &value
	return nil
}

func (s *InMemoryStore) MintInfo(_ context.Context) (*MintInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil, sentinel.ErrNotFound
	}
	value := *s.info
	return &value, nil
}

func (s *InMemoryStore) UpdateMintInfo(_ context.Context, info *MintInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return sentinel.ErrNotFound
	}
	value := *info
	s.info = &value
	return nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = nil
}
