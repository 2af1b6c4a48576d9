package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBundleNotFound       = errors.New("subscription bundle not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrEventNotFound        = errors.New("subscription event not found")
	ErrNoBaseSubscription   = errors.New("bundle has no base subscription")

	// ErrConcurrentRepair signals a stale repair view token: the bundle
	// changed between fetch and repair. Callers retry with a fresh view.
	ErrConcurrentRepair = errors.New("bundle changed since repair view was fetched")

	// ErrAddonNotAllowed signals an add-on plan that is not purchasable
	// under the bundle's base product (missing, not available, or already
	// included).
	ErrAddonNotAllowed = errors.New("add-on plan not allowed under base product")

	ErrUnknownTransitionType = errors.New("unknown repair transition type")
)

// InvalidDateSequenceError reports an event whose effective date breaks the
// chronological derivability of a subscription's timeline.
type InvalidDateSequenceError struct {
	SubscriptionID uuid.UUID
	EventType      EventType
	Effective      time.Time
	Boundary       time.Time
}

func (e *InvalidDateSequenceError) Error() string {
	return fmt.Sprintf("invalid date sequence for subscription %s: %s event effective %s precedes %s",
		e.SubscriptionID, e.EventType, e.Effective.Format(time.RFC3339), e.Boundary.Format(time.RFC3339))
}

// RepairError wraps any failure inside a repair call with the subscription
// and transition that produced it, so bundle-level callers can pinpoint the
// offending edit.
type RepairError struct {
	SubscriptionID uuid.UUID
	TransitionType EventType
	Err            error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("repair failed for subscription %s (transition %s): %v", e.SubscriptionID, e.TransitionType, e.Err)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

func newRepairError(subscriptionID uuid.UUID, transition EventType, err error) *RepairError {
	return &RepairError{SubscriptionID: subscriptionID, TransitionType: transition, Err: err}
}
