package accounts

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps records in a mutex-guarded map.
type MemoryStore struct {
	mu    sync.Mutex
	accts map[string]Account
}

// NewMemoryStore creates a store holding accts.
func NewMemoryStore(accts ...Account) *MemoryStore {
	m := &MemoryStore{accts: make(map[string]Account, len(accts))}
	for _, a := range accts {
		m.accts[a.NIK] = a
	}
	return m
}

// Get returns a copy of the record for nik.
func (m *MemoryStore) Get(_ context.Context, nik string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accts[nik]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// Debit subtracts amount from the balance if it covers it.
func (m *MemoryStore) Debit(_ context.Context, nik string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accts[nik]
	if !ok {
		return 0, ErrNotFound
	}
	if a.Balance < amount {
		return a.Balance, ErrInsufficientBalance
	}
	a.Balance -= amount
	m.accts[nik] = a
	return a.Balance, nil
}

// List returns all records ordered by NIK.
func (m *MemoryStore) List(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accts))
	for _, a := range m.accts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIK < out[j].NIK })
	return out, nil
}

// Put inserts or replaces a record.
func (m *MemoryStore) Put(_ context.Context, a Account) error {
	if a.NIK == "" {
		return fmt.Errorf("account nik is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accts[a.NIK] = a
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
