package storage

import (
	"sync"

	"inkflow-backend/internal/model"
)

// MemoryStore keeps the snapshot in process memory. Used in tests and in
// single-context deployments where durability across restarts is not needed.
type MemoryStore struct {
	mu      sync.RWMutex
	results []model.StreamResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Init() error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Save(results []model.StreamResult) error {
	return m.SaveNow(results)
}

func (m *MemoryStore) SaveNow(results []model.StreamResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append([]model.StreamResult(nil), results...)
	return nil
}

func (m *MemoryStore) Load() ([]model.StreamResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]model.StreamResult(nil), m.results...), nil
}
