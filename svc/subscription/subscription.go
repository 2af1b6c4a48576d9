package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// InitialVersion is the active version a subscription starts its life with.
// Each committed repair bumps the version by one and replaces the stored
// event set wholesale; superseded versions are not retained.
const InitialVersion int64 = 1

// Subscription is one subscribed plan line inside a bundle. It owns its
// event list exclusively: outside of repair the list only grows, and repair
// replaces it wholesale under a new version.
type Subscription struct {
	ID            uuid.UUID
	BundleID      uuid.UUID
	Category      catalog.ProductCategory
	ActiveVersion int64
	Events        []Event
}

// ActiveEvents returns the events of the current version in replay order.
func (s *Subscription) ActiveEvents() []Event {
	return EventsForVersion(s.Events, s.ActiveVersion)
}

// Clone returns a deep copy. Repair operates on clones so a dry run can
// never leak mutations into a live entity.
func (s *Subscription) Clone() *Subscription {
	cp := *s
	cp.Events = make([]Event, len(s.Events))
	copy(cp.Events, s.Events)
	return &cp
}

// Bundle groups exactly one active base subscription with its add-ons.
// The bundle shares a lifecycle: base-level changes trickle down to add-ons.
type Bundle struct {
	ID          uuid.UUID
	ExternalKey string
	AccountID   uuid.UUID
	CreatedAt   time.Time
}
