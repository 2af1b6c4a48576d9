package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
)

// MemoryScheduler implements Scheduler for testing and local development.
type MemoryScheduler struct {
	mu      sync.RWMutex
	pending map[Queue]map[uuid.UUID]*Pending
	clk     clock.Clock
}

// NewMemoryScheduler creates an empty in-memory scheduler. A nil clock
// defaults to the system clock.
func NewMemoryScheduler(clk clock.Clock) *MemoryScheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryScheduler{
		pending: make(map[Queue]map[uuid.UUID]*Pending),
		clk:     clk,
	}
}

func (ms *MemoryScheduler) ScheduleAt(ctx context.Context, queue Queue, entityID uuid.UUID, effective time.Time) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if entityID == uuid.Nil {
		return ErrNilEntityID
	}
	if effective.IsZero() {
		return ErrZeroEffective
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.pending[queue] == nil {
		ms.pending[queue] = make(map[uuid.UUID]*Pending)
	}

	// Replace-on-insert keeping the earliest effective time.
	if existing, ok := ms.pending[queue][entityID]; ok && existing.Effective.Before(effective) {
		return nil
	}

	ms.pending[queue][entityID] = &Pending{
		Queue:     queue,
		EntityID:  entityID,
		Effective: effective.UTC(),
		CreatedAt: ms.clk.Now(),
	}
	return nil
}

func (ms *MemoryScheduler) CancelAllFor(ctx context.Context, queue Queue, entityID uuid.UUID) error {
	if queue == "" {
		return ErrEmptyQueue
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.pending[queue], entityID)
	return nil
}

func (ms *MemoryScheduler) FindPendingFor(ctx context.Context, queue Queue, entityID uuid.UUID) (*Pending, error) {
	if queue == "" {
		return nil, ErrEmptyQueue
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, ok := ms.pending[queue][entityID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Due returns all pending entries with an effective time at or before now,
// without removing them. The dispatching transport claims and removes
// entries; tests use Due to fast-forward the engine.
func (ms *MemoryScheduler) Due(queue Queue, now time.Time) []Pending {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []Pending
	for _, p := range ms.pending[queue] {
		if !p.Effective.After(now) {
			due = append(due, *p)
		}
	}
	return due
}
