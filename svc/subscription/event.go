package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// EventType tags a subscription event. PHASE events are system-derived from
// catalog phase durations; every other type is caller-requested.
type EventType string

const (
	EventCreate   EventType = "CREATE"
	EventReCreate EventType = "RE_CREATE"
	EventTransfer EventType = "TRANSFER"
	EventChange   EventType = "CHANGE"
	EventCancel   EventType = "CANCEL"
	EventPhase    EventType = "PHASE"
)

// UserRequestable reports whether callers may submit events of this type.
func (t EventType) UserRequestable() bool {
	return t != EventPhase
}

// IsStart reports whether the event type begins (or re-begins) a
// subscription timeline.
func (t EventType) IsStart() bool {
	return t == EventCreate || t == EventReCreate || t == EventTransfer
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventReCreate, EventTransfer, EventChange, EventCancel, EventPhase:
		return true
	}
	return false
}

// tiebreak orders same-instant events deterministically:
// start events before CHANGE before CANCEL before PHASE.
func (t EventType) tiebreak() int {
	switch t {
	case EventCreate, EventReCreate, EventTransfer:
		return 0
	case EventChange:
		return 1
	case EventCancel:
		return 2
	case EventPhase:
		return 3
	default:
		return 4
	}
}

// Event is one immutable entry in a subscription's log. The log is the
// single source of truth: current plan, phase and state are always derived
// by replaying it, never stored.
type Event struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Type           EventType
	EffectiveDate  time.Time
	RequestedDate  time.Time
	CreatedDate    time.Time
	ActiveVersion  int64

	// Spec locates the plan/phase this event switches to. CANCEL events
	// leave it empty; PHASE events carry only the phase type.
	Spec catalog.PlanSpecifier

	// FromDisk distinguishes persisted events from in-memory ones built
	// during a repair dry run.
	FromDisk bool
}

// Compare orders events by effective date, then event-type priority, then
// created date, then id. The final two tiers only matter for determinism
// when callers submit pathological same-instant inputs.
func (e Event) Compare(other Event) int {
	if c := e.EffectiveDate.Compare(other.EffectiveDate); c != 0 {
		return c
	}
	if c := e.Type.tiebreak() - other.Type.tiebreak(); c != 0 {
		return c
	}
	if c := e.CreatedDate.Compare(other.CreatedDate); c != 0 {
		return c
	}
	return compareUUID(e.ID, other.ID)
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SortEvents sorts a copy of events into replay order.
func SortEvents(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, Event.Compare)
	return sorted
}

// EventsForVersion returns the events belonging to the given active version,
// sorted into replay order.
func EventsForVersion(events []Event, version int64) []Event {
	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		if e.ActiveVersion == version {
			filtered = append(filtered, e)
		}
	}
	return SortEvents(filtered)
}
