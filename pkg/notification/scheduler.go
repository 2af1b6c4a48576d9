// Package notification provides deferred re-check scheduling for billing
// entities.
//
// The overdue engine does not poll: whenever it leaves an account in a state
// that may change with the passage of time, it schedules a single future
// notification and reacts when that notification fires. The transport that
// dispatches due notifications lives outside this kit; the package specifies
// the storage contract and ships in-memory and Redis implementations.
//
// The one invariant the scheduler itself enforces is at-most-one pending
// entry per (queue, entity): re-scheduling an entity replaces the pending
// entry, and the retained effective time is always the earliest of the old
// and new times. An entity due for a check at T must never silently slip to
// a later T' because of a subsequent insert.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queue identifies a notification queue. Typed to avoid stringly-typed
// lookups at call sites.
type Queue string

const (
	// QueueOverdueCheck holds pending overdue re-evaluation checks.
	QueueOverdueCheck Queue = "overdue-check"

	// QueueSubscriptionPhase holds pending plan phase transitions.
	QueueSubscriptionPhase Queue = "subscription-phase"
)

// Pending is a scheduled future notification for one entity.
type Pending struct {
	Queue     Queue
	EntityID  uuid.UUID
	Effective time.Time
	CreatedAt time.Time
}

// Scheduler stores at most one pending notification per (queue, entity).
type Scheduler interface {
	// ScheduleAt inserts or replaces the pending entry for entityID. When an
	// entry already exists, the retained effective time is the earliest of
	// the existing and requested times.
	ScheduleAt(ctx context.Context, queue Queue, entityID uuid.UUID, effective time.Time) error

	// CancelAllFor removes any pending entry for entityID. Cancelling an
	// entity with no pending entry is a no-op.
	CancelAllFor(ctx context.Context, queue Queue, entityID uuid.UUID) error

	// FindPendingFor returns the pending entry for entityID, or nil if none.
	FindPendingFor(ctx context.Context, queue Queue, entityID uuid.UUID) (*Pending, error)
}
