package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store for testing and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[uuid.UUID]*Account)}
}

func (ms *MemoryStore) Get(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	a, ok := ms.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (ms *MemoryStore) Save(ctx context.Context, account *Account) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *account
	ms.accounts[account.ID] = &cp
	return nil
}
