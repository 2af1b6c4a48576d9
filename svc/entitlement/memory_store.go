package entitlement

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryBlockingStore implements BlockingStore for testing and local
// development.
type MemoryBlockingStore struct {
	mu     sync.RWMutex
	states []*BlockingState
}

func NewMemoryBlockingStore() *MemoryBlockingStore {
	return &MemoryBlockingStore{}
}

func (ms *MemoryBlockingStore) Current(ctx context.Context, entityID uuid.UUID, service string) (*BlockingState, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var current *BlockingState
	for _, s := range ms.states {
		if s.EntityID != entityID || s.Service != service {
			continue
		}
		if current == nil ||
			s.EffectiveDate.After(current.EffectiveDate) ||
			(s.EffectiveDate.Equal(current.EffectiveDate) && s.CreatedAt.After(current.CreatedAt)) {
			current = s
		}
	}
	if current == nil {
		return nil, nil
	}
	cp := *current
	return &cp, nil
}

func (ms *MemoryBlockingStore) Save(ctx context.Context, state *BlockingState) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *state
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	ms.states = append(ms.states, &cp)
	return nil
}

func (ms *MemoryBlockingStore) History(ctx context.Context, entityID uuid.UUID, service string) ([]*BlockingState, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*BlockingState
	for _, s := range ms.states {
		if s.EntityID == entityID && s.Service == service {
			cp := *s
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *BlockingState) int {
		if c := a.EffectiveDate.Compare(b.EffectiveDate); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
