package session

import (
	"context"
	"fmt"
)

// Manager serializes every change to a session behind a per-session lock,
// so adaptive state is always updated in chunk order.
type Manager struct {
	store Store
	locks KeyedMutex[string]
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Create(ctx context.Context, s *Session) error {
	if err := m.store.Put(ctx, s); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Update loads the session, applies fn and stores the result. Nothing is
// stored when fn fails.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()
	return m.store.Delete(ctx, id)
}
