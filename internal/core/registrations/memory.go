package registrations

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	byID   map[string]*Registration
	nextID int64
	mu     sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*Registration)}
}

func (m *MemoryRepository) Create(_ context.Context, reg *Registration) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := *reg
	stored.ID = m.nextID
	m.byID[reg.RegistrationID] = &stored

	out := stored
	return &out, nil
}

func (m *MemoryRepository) GetByRegistrationID(_ context.Context, registrationID string) (*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.byID[registrationID]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	out := *reg
	return &out, nil
}

// GetByProvider returns the most recently created registration for provider.
func (m *MemoryRepository) GetByProvider(_ context.Context, provider string) (*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *Registration
	for _, reg := range m.byID {
		if reg.PDSProvider == provider && (found == nil || reg.ID > found.ID) {
			found = reg
		}
	}
	if found == nil {
		return nil, ErrRegistrationNotFound
	}
	out := *found
	return &out, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, registrationID string, status Status, verifiedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byID[registrationID]
	if !ok {
		return ErrRegistrationNotFound
	}
	reg.Status = status
	if verifiedAt != nil {
		t := *verifiedAt
		reg.VerifiedAt = &t
	}
	reg.UpdatedAt = time.Now().UTC()
	return nil
}
