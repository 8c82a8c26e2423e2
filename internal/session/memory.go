package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"finreview/internal/domain"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps session snapshots in process memory. Expired entries
// are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[uuid.UUID]entry{}, now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, id uuid.UUID, snapshot []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{data: append([]byte(nil), snapshot...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return nil, domain.ErrSessionNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
