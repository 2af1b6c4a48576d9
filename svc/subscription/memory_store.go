package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store for testing and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[uuid.UUID]*Bundle
	subs    map[uuid.UUID]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles: make(map[uuid.UUID]*Bundle),
		subs:    make(map[uuid.UUID]*Subscription),
	}
}

func (ms *MemoryStore) GetBundle(ctx context.Context, bundleID uuid.UUID) (*Bundle, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	b, ok := ms.bundles[bundleID]
	if !ok {
		return nil, ErrBundleNotFound
	}
	cp := *b
	return &cp, nil
}

func (ms *MemoryStore) GetBundlesForAccount(ctx context.Context, accountID uuid.UUID) ([]*Bundle, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Bundle
	for _, b := range ms.bundles {
		if b.AccountID == accountID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (ms *MemoryStore) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.subs[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.Clone(), nil
}

func (ms *MemoryStore) GetSubscriptionsForBundle(ctx context.Context, bundleID uuid.UUID) ([]*Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.subsForBundleLocked(bundleID), nil
}

func (ms *MemoryStore) subsForBundleLocked(bundleID uuid.UUID) []*Subscription {
	var out []*Subscription
	for _, s := range ms.subs {
		if s.BundleID == bundleID {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (ms *MemoryStore) CreateBundle(ctx context.Context, bundle *Bundle) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *bundle
	ms.bundles[bundle.ID] = &cp
	return nil
}

func (ms *MemoryStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.subs[sub.ID] = sub.Clone()
	return nil
}

func (ms *MemoryStore) AppendEvents(ctx context.Context, subscriptionID uuid.UUID, events ...Event) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.subs[subscriptionID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	for _, e := range events {
		e.FromDisk = true
		s.Events = append(s.Events, e)
	}
	return nil
}

func (ms *MemoryStore) ReplaceEvents(ctx context.Context, bundleID uuid.UUID, expectedViewID string, updates []VersionedEvents) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.bundles[bundleID]; !ok {
		return ErrBundleNotFound
	}

	// Token check and write happen under the same lock, the memory-store
	// equivalent of a single transaction.
	current := ms.subsForBundleLocked(bundleID)
	if ComputeViewID(current) != expectedViewID {
		return ErrConcurrentRepair
	}

	for _, u := range updates {
		s, ok := ms.subs[u.SubscriptionID]
		if !ok || s.BundleID != bundleID {
			return ErrSubscriptionNotFound
		}
	}

	for _, u := range updates {
		s := ms.subs[u.SubscriptionID]
		s.ActiveVersion = u.NewVersion
		s.Events = make([]Event, len(u.Events))
		for i, e := range u.Events {
			e.FromDisk = true
			s.Events[i] = e
		}
	}
	return nil
}
