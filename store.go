package authflow

import (
	"context"
	"sync"
)

// MemoryStore is an in-process SessionStore. Useful for tests and for
// embedders that keep durability elsewhere.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, nil
	}
	session := *s.session
	return &session, nil
}

func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return WithMetadata(ErrSessionStorage, map[string]any{
			"reason": "session is nil",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *session
	s.session = &saved
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
