package aml

import (
	"context"
	"sync"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps AML state in process memory. Records are stored by
// value so callers cannot mutate state behind the lock.
type InMemoryStore struct {
	mu          sync.RWMutex
	authorities map[domain.AuthorityKey]Authority
	entries     map[domain.UserID]BlacklistEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		authorities: make(map[domain.AuthorityKey]Authority),
		entries:     make(map[domain.UserID]BlacklistEntry),
	}
}

func (s *InMemoryStore) CreateAuthority(_ context.Context, authority *Authority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorities[authority.Key]; ok {
		return sentinel.ErrConflict
	}
	s.authorities[authority.Key] = *authority
	return nil
}

func (s *InMemoryStore) Authority(_ context.Context, key domain.AuthorityKey) (*Authority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authority, ok := s.authorities[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &authority, nil
}

func (s *InMemoryStore) UpdateAuthority(_ context.Context, authority *Authority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorities[authority.Key]; !ok {
		return sentinel.ErrNotFound
	}
	s.authorities[authority.Key] = *authority
	return nil
}

func (s *InMemoryStore) CreateEntry(_ context.Context, entry *BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.UserID]; ok {
		return sentinel.ErrConflict
	}
	s.entries[entry.UserID] = *entry
	return nil
}

func (s *InMemoryStore) Entry(_ context.Context, userID domain.UserID) (*BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &entry, nil
}

func (s *InMemoryStore) UpdateEntry(_ context.Context, entry *BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.UserID]; !ok {
		return sentinel.ErrNotFound
	}
	s.entries[entry.UserID] = *entry
	return nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorities = make(map[domain.AuthorityKey]Authority)
	s.entries = make(map[domain.UserID]BlacklistEntry)
}
