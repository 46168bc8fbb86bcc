package repository

import (
	"context"
	"sync"

	"omikuji-bot/internal/model"
)

// MemoryStore keeps the snapshot in process memory.
// Used for the "memory" storage driver and as a test double.
type MemoryStore struct {
	mu    sync.Mutex
	snap  model.Snapshot
	saves int
}

// NewMemoryStore creates a MemoryStore seeded with a copy of initial.
func NewMemoryStore(initial model.Snapshot) *MemoryStore {
	if initial == nil {
		initial = model.Snapshot{}
	}
	return &MemoryStore{snap: initial.Clone()}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryStore) Load(ctx context.Context) (model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

// Save replaces the stored snapshot with a copy of snap.
func (m *MemoryStore) Save(ctx context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Update applies fn to a copy of the snapshot and stores it if fn asks to.
func (m *MemoryStore) Update(ctx context.Context, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snap.Clone()
	persist, err := fn(snap)
	if err != nil {
		return err
	}
	if !persist {
		return nil
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Get returns a copy of one user's record.
func (m *MemoryStore) Get(ctx context.Context, userID string) (*model.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recordOf(m.snap, userID), nil
}

// Saves returns how many snapshots have been committed.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
