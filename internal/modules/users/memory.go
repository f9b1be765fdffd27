package users

import (
	"context"
	"sync"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	users map[string]User
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
	}
}

func (s *MemoryStore) Get(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[NormalizeEmail(email)]
	if !exists {
		return nil, nil
	}
	return &user, nil
}

func (s *MemoryStore) Put(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if _, exists := s.users[user.Email]; exists {
		return ErrUserExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, email, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(email)
	user, exists := s.users[key]
	if !exists {
		return ErrUserNotFound
	}
	user.Password = hash
	s.users[key] = user
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
