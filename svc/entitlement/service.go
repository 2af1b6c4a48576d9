// Package entitlement manages what a customer is entitled to use: pausing
// and resuming bundles through blocking states, and cancelling
// subscriptions on behalf of the overdue engine.
//
// Pause and resume are intentionally asymmetric: pausing an already-blocked
// bundle is a caller error (ErrAlreadyBlocked, code ENT_ALREADY_BLOCKED),
// while resuming an already-active bundle succeeds silently. Callers retry
// resumes freely; a double pause almost always signals a lost update on
// their side.
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/pkg/eventbus"
	"github.com/dmitrymomot/billingkit/svc/catalog"
	"github.com/dmitrymomot/billingkit/svc/subscription"
)

// BillingActionPolicy controls when a forced cancellation takes effect.
type BillingActionPolicy string

const (
	// PolicyEndOfTerm cancels at the end of the current billing period.
	PolicyEndOfTerm BillingActionPolicy = "END_OF_TERM"
	// PolicyImmediate cancels right away.
	PolicyImmediate BillingActionPolicy = "IMMEDIATE"
)

// BlockingChangedEvent is published after a pause or resume takes effect.
type BlockingChangedEvent struct {
	EntityID  uuid.UUID `json:"entity_id"`
	Service   string    `json:"service"`
	StateName string    `json:"state_name"`
	Blocked   bool      `json:"blocked"`
}

func (BlockingChangedEvent) EventName() string { return "entitlement.blocking.changed" }

// EntitlementCancelledEvent is published per subscription cancelled by a
// forced account-level cancellation.
type EntitlementCancelledEvent struct {
	AccountID      uuid.UUID `json:"account_id"`
	BundleID       uuid.UUID `json:"bundle_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Effective      time.Time `json:"effective"`
}

func (EntitlementCancelledEvent) EventName() string { return "entitlement.cancelled" }

// Service implements entitlement operations over the subscription store and
// the blocking-state history.
type Service struct {
	subs     subscription.Store
	blocking BlockingStore
	cat      catalog.Catalog
	bus      eventbus.Publisher
	clk      clock.Clock
	log      *slog.Logger
}

// NewService creates an entitlement Service. Panics on nil stores to fail
// fast at construction; bus, clock and logger fall back to safe defaults.
func NewService(subs subscription.Store, blocking BlockingStore, cat catalog.Catalog, bus eventbus.Publisher, clk clock.Clock, log *slog.Logger) *Service {
	if subs == nil {
		panic("entitlement: subscription store is required")
	}
	if blocking == nil {
		panic("entitlement: blocking store is required")
	}
	if cat == nil {
		panic("entitlement: catalog is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{subs: subs, blocking: blocking, cat: cat, bus: bus, clk: clk, log: log}
}

// Pause blocks a bundle's entitlement. Fails with ErrAlreadyBlocked when
// the bundle is already blocked.
func (s *Service) Pause(ctx context.Context, bundleID uuid.UUID, effective time.Time) error {
	if _, err := s.subs.GetBundle(ctx, bundleID); err != nil {
		return err
	}

	current, err := s.blocking.Current(ctx, bundleID, ServiceEntitlement)
	if err != nil {
		return err
	}
	if current != nil && current.BlockEntitlement {
		return ErrAlreadyBlocked
	}

	state := &BlockingState{
		ID:               uuid.New(),
		EntityID:         bundleID,
		Type:             BlockingTypeBundle,
		StateName:        StateNameBlocked,
		Service:          ServiceEntitlement,
		BlockChange:      true,
		BlockEntitlement: true,
		BlockBilling:     true,
		EffectiveDate:    effective,
		CreatedAt:        s.clk.Now(),
	}
	if err := s.blocking.Save(ctx, state); err != nil {
		return err
	}

	s.publish(ctx, BlockingChangedEvent{
		EntityID:  bundleID,
		Service:   ServiceEntitlement,
		StateName: StateNameBlocked,
		Blocked:   true,
	})
	return nil
}

// Resume unblocks a bundle's entitlement. Resuming an already-active bundle
// is a no-op that still succeeds.
func (s *Service) Resume(ctx context.Context, bundleID uuid.UUID, effective time.Time) error {
	if _, err := s.subs.GetBundle(ctx, bundleID); err != nil {
		return err
	}

	current, err := s.blocking.Current(ctx, bundleID, ServiceEntitlement)
	if err != nil {
		return err
	}
	if current == nil || !current.BlockEntitlement {
		return nil
	}

	state := &BlockingState{
		ID:            uuid.New(),
		EntityID:      bundleID,
		Type:          BlockingTypeBundle,
		StateName:     StateNameClear,
		Service:       ServiceEntitlement,
		EffectiveDate: effective,
		CreatedAt:     s.clk.Now(),
	}
	if err := s.blocking.Save(ctx, state); err != nil {
		return err
	}

	s.publish(ctx, BlockingChangedEvent{
		EntityID:  bundleID,
		Service:   ServiceEntitlement,
		StateName: StateNameClear,
		Blocked:   false,
	})
	return nil
}

// EffectiveState projects a subscription's state and overlays the bundle's
// blocking state: an active subscription in a blocked bundle is BLOCKED.
func (s *Service) EffectiveState(ctx context.Context, sub *subscription.Subscription, asOf time.Time) (subscription.State, error) {
	view, err := subscription.Project(sub.ActiveEvents(), asOf)
	if err != nil {
		return "", err
	}
	if view.State != subscription.StateActive {
		return view.State, nil
	}

	current, err := s.blocking.Current(ctx, sub.BundleID, ServiceEntitlement)
	if err != nil {
		return "", err
	}
	if current != nil && current.BlockEntitlement && !current.EffectiveDate.After(asOf) {
		return subscription.StateBlocked, nil
	}
	return subscription.StateActive, nil
}

// CancelForAccount cancels every non-cancelled subscription belonging to
// the account. Used by the overdue engine's cancellation policies. The
// effective date follows the policy: immediately, or at the end of the
// current billing period.
func (s *Service) CancelForAccount(ctx context.Context, accountID uuid.UUID, policy BillingActionPolicy) error {
	now := s.clk.Now()

	bundles, err := s.subs.GetBundlesForAccount(ctx, accountID)
	if err != nil {
		return err
	}

	for _, bundle := range bundles {
		list, err := s.subs.GetSubscriptionsForBundle(ctx, bundle.ID)
		if err != nil {
			return err
		}
		for _, sub := range list {
			view, err := subscription.Project(sub.ActiveEvents(), now)
			if err != nil {
				return err
			}
			if view.State == subscription.StateCancelled || view.State == subscription.StatePending {
				continue
			}

			effective := now
			if policy == PolicyEndOfTerm {
				effective = endOfTerm(view, now)
			}

			cancel := subscription.Event{
				ID:             uuid.New(),
				SubscriptionID: sub.ID,
				Type:           subscription.EventCancel,
				EffectiveDate:  effective,
				RequestedDate:  now,
				CreatedDate:    now,
				ActiveVersion:  sub.ActiveVersion,
			}
			if err := s.subs.AppendEvents(ctx, sub.ID, cancel); err != nil {
				return err
			}

			s.publish(ctx, EntitlementCancelledEvent{
				AccountID:      accountID,
				BundleID:       bundle.ID,
				SubscriptionID: sub.ID,
				Effective:      effective,
			})
		}
	}
	return nil
}

// CheckAddonCreationRights validates that a new add-on subscription may be
// created in the bundle right now. Returns ErrNoBaseSubscription when the
// bundle has no active base.
func (s *Service) CheckAddonCreationRights(ctx context.Context, bundleID uuid.UUID, addonPlan catalog.Plan) error {
	now := s.clk.Now()

	list, err := s.subs.GetSubscriptionsForBundle(ctx, bundleID)
	if err != nil {
		return err
	}

	var baseProduct *catalog.Product
	for _, sub := range list {
		if sub.Category != catalog.CategoryBase {
			continue
		}
		view, err := subscription.Project(sub.ActiveEvents(), now)
		if err != nil {
			return err
		}
		if view.State != subscription.StateActive {
			continue
		}
		plan, err := s.cat.FindPlan(ctx, view.CurrentPlan.ProductName, view.CurrentPlan.BillingPeriod, view.CurrentPlan.PriceList)
		if err != nil {
			return err
		}
		baseProduct = &plan.Product
		break
	}
	if baseProduct == nil {
		return ErrNoBaseSubscription
	}

	return subscription.NewAddonRules(s.cat).CheckCreationRights(ctx, baseProduct, addonPlan)
}

// endOfTerm returns the end of the billing period in progress at now.
func endOfTerm(view *subscription.TimelineView, now time.Time) time.Time {
	months := view.CurrentPlan.BillingPeriod.Months()
	if months == 0 || view.StartDate.IsZero() {
		return now
	}
	boundary := view.StartDate
	for !boundary.After(now) {
		boundary = boundary.AddDate(0, months, 0)
	}
	return boundary
}

func (s *Service) publish(ctx context.Context, ev eventbus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "failed to publish entitlement event",
			slog.String("event", ev.EventName()),
			slog.Any("error", err))
	}
}
