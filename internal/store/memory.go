package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process TokenStore. It backs tests and the
// single-instance deployment mode where durability across gateway
// restarts is not needed.
type MemoryStore struct {
	mu      sync.Mutex
	tokens  map[string]string
	reasons map[string]Reason
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:  make(map[string]string),
		reasons: make(map[string]Reason),
	}
}

func (m *MemoryStore) Get(_ context.Context, contextID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[contextID]
	if !ok {
		return "", ErrNotFound
	}
	return tok, nil
}

func (m *MemoryStore) Set(_ context.Context, contextID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[contextID] = token
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, contextID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, contextID)
	delete(m.reasons, contextID)
	return nil
}

func (m *MemoryStore) SetLogoutReason(_ context.Context, contextID string, reason Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons[contextID] = reason
	return nil
}

func (m *MemoryStore) TakeLogoutReason(_ context.Context, contextID string) (Reason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.reasons[contextID]
	if !ok {
		return "", ErrNotFound
	}
	delete(m.reasons, contextID)
	return reason, nil
}
