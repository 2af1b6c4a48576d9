package entitlement

import "errors"

// Error codes surfaced to API layers. Codes are stable contract; messages
// are not.
const (
	CodeAlreadyBlocked        = "ENT_ALREADY_BLOCKED"
	CodeNoSuchBaseSub         = "SUB_GET_NO_SUCH_BASE_SUBSCRIPTION"
	CodeCancelBadState        = "ENT_CANCEL_BAD_STATE"
	CodeUncancelBadState      = "ENT_UNCANCEL_BAD_STATE"
)

var (
	// ErrAlreadyBlocked is returned when pausing a bundle that is already
	// blocked. Resuming an already-active bundle, by contrast, is a silent
	// no-op; the asymmetry is deliberate and relied upon by callers.
	ErrAlreadyBlocked = errors.New("entitlement is already blocked")

	// ErrNoBaseSubscription is returned when an add-on operation cannot
	// find an active base subscription to attach to.
	ErrNoBaseSubscription = errors.New("no such base subscription")

	ErrAlreadyCancelled = errors.New("entitlement is already cancelled")
	ErrNotActive        = errors.New("entitlement is not active")
)
