package subscription

import (
	"context"

	"github.com/google/uuid"
)

// VersionedEvents is the replacement event set a committed repair writes
// for one subscription.
type VersionedEvents struct {
	SubscriptionID uuid.UUID
	NewVersion     int64
	Events         []Event
}

// Store persists bundles, subscriptions and their event logs.
//
// ReplaceEvents is the commit side of repair: it must recompute the bundle
// view token from currently persisted state and compare it against
// expectedViewID inside the same transaction as the write, returning
// ErrConcurrentRepair on mismatch. All updates succeed or none do.
type Store interface {
	GetBundle(ctx context.Context, bundleID uuid.UUID) (*Bundle, error)
	GetBundlesForAccount(ctx context.Context, accountID uuid.UUID) ([]*Bundle, error)
	GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error)
	GetSubscriptionsForBundle(ctx context.Context, bundleID uuid.UUID) ([]*Subscription, error)

	CreateBundle(ctx context.Context, bundle *Bundle) error
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// AppendEvents adds events to a subscription's log without touching its
	// version. Used for regular lifecycle operations (cancel, phase
	// materialization), never for repair.
	AppendEvents(ctx context.Context, subscriptionID uuid.UUID, events ...Event) error

	// ReplaceEvents atomically bumps versions and rewrites event sets for
	// every touched subscription of the bundle.
	ReplaceEvents(ctx context.Context, bundleID uuid.UUID, expectedViewID string, updates []VersionedEvents) error
}
