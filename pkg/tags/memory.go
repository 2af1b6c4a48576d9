package tags

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLookup is an in-memory tag store for tests and local development.
type MemoryLookup struct {
	mu   sync.RWMutex
	tags map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewMemoryLookup() *MemoryLookup {
	return &MemoryLookup{tags: make(map[uuid.UUID]map[uuid.UUID]struct{})}
}

// Add attaches a tag definition to an account. Idempotent.
func (m *MemoryLookup) Add(accountID, tagDefinitionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags[accountID] == nil {
		m.tags[accountID] = make(map[uuid.UUID]struct{})
	}
	m.tags[accountID][tagDefinitionID] = struct{}{}
}

// Remove detaches a tag definition from an account. Removing an absent tag
// is a no-op.
func (m *MemoryLookup) Remove(accountID, tagDefinitionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags[accountID], tagDefinitionID)
}

func (m *MemoryLookup) HasTag(ctx context.Context, accountID, tagDefinitionID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tags[accountID][tagDefinitionID]
	return ok, nil
}
