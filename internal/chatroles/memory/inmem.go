package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InMemoryBankStore is a map-backed BankStore used by tests and by
// deployments that do not need durability. Banks are deep-copied through a
// JSON round-trip on both reads and writes so callers can never mutate the
// stored record through a shared slice.
type InMemoryBankStore struct {
	mu    sync.RWMutex
	banks map[string][]byte
}

// NewInMemoryBankStore returns an empty in-memory store.
func NewInMemoryBankStore() *InMemoryBankStore {
	return &InMemoryBankStore{banks: make(map[string][]byte)}
}

// Get returns a copy of the stored bank, or (nil, nil) when absent.
func (s *InMemoryBankStore) Get(_ context.Context, characterID string) (*Bank, error) {
	s.mu.RLock()
	raw, ok := s.banks[characterID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var bank Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("bank store: decode bank: %w", err)
	}
	return &bank, nil
}

// Put stores a copy of the bank under its CharacterID.
func (s *InMemoryBankStore) Put(_ context.Context, bank *Bank) error {
	raw, err := json.Marshal(bank)
	if err != nil {
		return fmt.Errorf("bank store: encode bank: %w", err)
	}

	s.mu.Lock()
	s.banks[bank.CharacterID] = raw
	s.mu.Unlock()
	return nil
}

// Compile-time interface satisfaction check.
var _ BankStore = (*InMemoryBankStore)(nil)
