package kyc

import (
	"context"
	"sync"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps KYC state in process memory. It backs unit tests and
// local runs; records are stored by value so callers cannot mutate state
// behind the lock.
type InMemoryStore struct {
	mu     sync.RWMutex
	oracle *OracleState
	users  map[domain.UserID]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[domain.UserID]User)}
}

func (s *InMemoryStore) CreateOracle(_ context.Context, state *OracleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oracle != nil {
		return sentinel.ErrConflict
	}
	copied := *state
	s.oracle = &copied
	return nil
}

func (s *InMemoryStore) Oracle(_ context.Context) (*OracleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.oracle == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.oracle
	return &copied, nil
}

func (s *InMemoryStore) UpdateOracle(_ context.Context, state *OracleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oracle == nil {
		return sentinel.ErrNotFound
	}
	copied := *state
	s.oracle = &copied
	return nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) User(_ context.Context, userID domain.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &user, nil
}

func (s *InMemoryStore) UpdateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracle = nil
	s.users = make(map[domain.UserID]User)
}
