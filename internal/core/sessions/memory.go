package sessions

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	sessions map[string]map[string]*Session
	nextID   int64
	mu       sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]map[string]*Session)}
}

func (m *MemoryRepository) FindActive(_ context.Context, customerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *Session
	for _, s := range m.sessions[customerID] {
		if found == nil || s.UpdatedAt.After(found.UpdatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, ErrSessionNotFound
	}
	out := *found
	return &out, nil
}

func (m *MemoryRepository) Save(_ context.Context, s *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byProvider := m.sessions[s.CustomerID]
	if byProvider == nil {
		byProvider = make(map[string]*Session)
		m.sessions[s.CustomerID] = byProvider
	}

	stored := *s
	if prev, ok := byProvider[s.PDSProvider]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		m.nextID++
		stored.ID = m.nextID
	}
	byProvider[s.PDSProvider] = &stored

	out := stored
	return &out, nil
}

func (m *MemoryRepository) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[customerID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, customerID)
	return nil
}
