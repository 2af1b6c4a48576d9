package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BlockingStateType is the kind of entity a blocking state applies to.
type BlockingStateType string

const (
	BlockingTypeAccount      BlockingStateType = "ACCOUNT"
	BlockingTypeBundle       BlockingStateType = "BUNDLE"
	BlockingTypeSubscription BlockingStateType = "SUBSCRIPTION"
)

// Service namespaces for blocking states. Each service owns one logical
// current state per entity; histories never interleave across services.
const (
	ServiceEntitlement = "entitlement"
	ServiceOverdue     = "overdue"
)

// Well-known state names written by this kit.
const (
	StateNameBlocked = "BLOCKED"
	StateNameClear   = "CLEAR"
)

// BlockingState is one persisted entry in an entity's blocking history.
// History is append-only; the entry with the latest effective date (ties
// broken by creation time) is the current state.
type BlockingState struct {
	ID               uuid.UUID
	EntityID         uuid.UUID
	Type             BlockingStateType
	StateName        string
	Service          string
	BlockChange      bool
	BlockEntitlement bool
	BlockBilling     bool
	EffectiveDate    time.Time
	CreatedAt        time.Time
}

// IsBlocking reports whether any of the three block flags is set.
func (b *BlockingState) IsBlocking() bool {
	return b != nil && (b.BlockChange || b.BlockEntitlement || b.BlockBilling)
}

// BlockingStore persists blocking states.
type BlockingStore interface {
	// Current returns the latest blocking state for (entityID, service),
	// or nil when the entity has no history there.
	Current(ctx context.Context, entityID uuid.UUID, service string) (*BlockingState, error)

	// Save appends a blocking state to the history.
	Save(ctx context.Context, state *BlockingState) error

	// History returns all blocking states for (entityID, service) in
	// effective order.
	History(ctx context.Context, entityID uuid.UUID, service string) ([]*BlockingState, error)
}
