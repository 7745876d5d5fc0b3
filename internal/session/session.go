// Package session provides server-side storage for opaque login tokens.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session not found or expired")

// Data is what a valid token resolves to.
type Data struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is implemented by the Redis backend and the in-memory fallback.
type Store interface {
	Save(ctx context.Context, token string, data Data, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (Data, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

// MemoryStore keeps sessions in process memory. Used when no Redis URL is
// configured; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, token string, data Data, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, token string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[token]
	if !ok {
		return Data{}, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, token)
		return Data{}, ErrNotFound
	}
	return entry.data, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
