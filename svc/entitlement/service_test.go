package entitlement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/pkg/eventbus"
	"github.com/dmitrymomot/billingkit/svc/catalog"
	"github.com/dmitrymomot/billingkit/svc/entitlement"
	"github.com/dmitrymomot/billingkit/svc/subscription"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func evergreenCatalog() *catalog.InMemCatalog {
	base := catalog.Product{Name: "standard", Category: catalog.CategoryBase, Available: []string{"backup"}}
	addon := catalog.Product{Name: "backup", Category: catalog.CategoryAddOn}
	phases := []catalog.PlanPhase{
		{Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
	}
	return catalog.NewInMemCatalog(
		catalog.Plan{Name: "standard-monthly", Product: base, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: phases},
		catalog.Plan{Name: "backup-monthly", Product: addon, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: phases},
	)
}

type fixture struct {
	svc      *entitlement.Service
	subs     *subscription.MemoryStore
	blocking *entitlement.MemoryBlockingStore
	clk      *clock.Mock
	bus      *eventbus.MemoryBus

	accountID uuid.UUID
	bundleID  uuid.UUID
	subID     uuid.UUID

	mu        sync.Mutex
	published []eventbus.Event
}

// newFixture seeds one account with one bundle holding an active monthly
// base subscription started Jan 15, observed at Mar 1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		subs:      subscription.NewMemoryStore(),
		blocking:  entitlement.NewMemoryBlockingStore(),
		clk:       clock.NewMock(day(2014, 3, 1)),
		bus:       eventbus.NewMemoryBus(),
		accountID: uuid.New(),
		bundleID:  uuid.New(),
		subID:     uuid.New(),
	}
	f.bus.SubscribeAll(func(ctx context.Context, ev eventbus.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, ev)
	})

	require.NoError(t, f.subs.CreateBundle(ctx, &subscription.Bundle{
		ID:          f.bundleID,
		ExternalKey: "ext-key",
		AccountID:   f.accountID,
		CreatedAt:   f.clk.Now(),
	}))
	require.NoError(t, f.subs.CreateSubscription(ctx, &subscription.Subscription{
		ID:            f.subID,
		BundleID:      f.bundleID,
		Category:      catalog.CategoryBase,
		ActiveVersion: subscription.InitialVersion,
		Events: []subscription.Event{{
			ID:             uuid.New(),
			SubscriptionID: f.subID,
			Type:           subscription.EventCreate,
			EffectiveDate:  day(2014, 1, 15),
			RequestedDate:  day(2014, 1, 15),
			CreatedDate:    day(2014, 1, 15),
			ActiveVersion:  subscription.InitialVersion,
			Spec: catalog.PlanSpecifier{
				ProductName:   "standard",
				BillingPeriod: catalog.PeriodMonthly,
				PriceList:     catalog.DefaultPriceList,
			},
			FromDisk: true,
		}},
	}))

	f.svc = entitlement.NewService(f.subs, f.blocking, evergreenCatalog(), f.bus, f.clk, nil)
	return f
}

func (f *fixture) lastPublished(t *testing.T) eventbus.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	return f.published[len(f.published)-1]
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()

	t.Run("pause blocks, double pause fails", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now()))

		current, err := f.blocking.Current(ctx, f.bundleID, entitlement.ServiceEntitlement)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.True(t, current.BlockEntitlement)
		assert.True(t, current.BlockBilling)
		assert.Equal(t, entitlement.StateNameBlocked, current.StateName)

		ev, ok := f.lastPublished(t).(entitlement.BlockingChangedEvent)
		require.True(t, ok)
		assert.True(t, ev.Blocked)

		assert.ErrorIs(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now()), entitlement.ErrAlreadyBlocked)
	})

	t.Run("resume unblocks, repeated resume is a no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now()))

		f.clk.Advance(time.Hour)
		require.NoError(t, f.svc.Resume(ctx, f.bundleID, f.clk.Now()))

		current, err := f.blocking.Current(ctx, f.bundleID, entitlement.ServiceEntitlement)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.False(t, current.IsBlocking())
		assert.Equal(t, entitlement.StateNameClear, current.StateName)

		before := len(f.published)
		require.NoError(t, f.svc.Resume(ctx, f.bundleID, f.clk.Now()))
		assert.Len(t, f.published, before, "no-op resume must not publish")

		history, err := f.blocking.History(ctx, f.bundleID, entitlement.ServiceEntitlement)
		require.NoError(t, err)
		assert.Len(t, history, 2, "no-op resume must not append history")
	})

	t.Run("resume on never-blocked bundle succeeds", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.svc.Resume(ctx, f.bundleID, f.clk.Now()))
	})

	t.Run("unknown bundle", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.Pause(ctx, uuid.New(), f.clk.Now()), subscription.ErrBundleNotFound)
		assert.ErrorIs(t, f.svc.Resume(ctx, uuid.New(), f.clk.Now()), subscription.ErrBundleNotFound)
	})
}

func TestEffectiveState(t *testing.T) {
	ctx := context.Background()

	t.Run("active without blocking", func(t *testing.T) {
		f := newFixture(t)
		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)

		state, err := f.svc.EffectiveState(ctx, sub, f.clk.Now())
		require.NoError(t, err)
		assert.Equal(t, subscription.StateActive, state)
	})

	t.Run("blocked overlay on active subscription", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now()))

		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		state, err := f.svc.EffectiveState(ctx, sub, f.clk.Now())
		require.NoError(t, err)
		assert.Equal(t, subscription.StateBlocked, state)
	})

	t.Run("future-dated block does not apply yet", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now().Add(48*time.Hour)))

		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		state, err := f.svc.EffectiveState(ctx, sub, f.clk.Now())
		require.NoError(t, err)
		assert.Equal(t, subscription.StateActive, state)
	})

	t.Run("pending ignores blocking", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.Pause(ctx, f.bundleID, f.clk.Now()))

		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		state, err := f.svc.EffectiveState(ctx, sub, day(2014, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, subscription.StatePending, state)
	})
}

func TestCancelForAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate policy cancels now", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.CancelForAccount(ctx, f.accountID, entitlement.PolicyImmediate))

		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		view, err := subscription.Project(sub.ActiveEvents(), f.clk.Now())
		require.NoError(t, err)
		assert.Equal(t, subscription.StateCancelled, view.State)
		assert.Equal(t, f.clk.Now(), view.EndDate)

		ev, ok := f.lastPublished(t).(entitlement.EntitlementCancelledEvent)
		require.True(t, ok)
		assert.Equal(t, f.subID, ev.SubscriptionID)
	})

	t.Run("end-of-term policy cancels at the period boundary", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.CancelForAccount(ctx, f.accountID, entitlement.PolicyEndOfTerm))

		sub, err := f.subs.GetSubscription(ctx, f.subID)
		require.NoError(t, err)

		// Started Jan 15, monthly; at Mar 1 the running period ends Mar 15.
		view, err := subscription.Project(sub.ActiveEvents(), day(2014, 4, 1))
		require.NoError(t, err)
		assert.Equal(t, subscription.StateCancelled, view.State)
		assert.Equal(t, day(2014, 3, 15), view.EndDate)

		// Still active until the boundary.
		view, err = subscription.Project(sub.ActiveEvents(), f.clk.Now())
		require.NoError(t, err)
		assert.Equal(t, subscription.StateActive, view.State)
	})

	t.Run("already cancelled subscriptions are skipped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.CancelForAccount(ctx, f.accountID, entitlement.PolicyImmediate))

		before := len(f.published)
		require.NoError(t, f.svc.CancelForAccount(ctx, f.accountID, entitlement.PolicyImmediate))
		assert.Len(t, f.published, before)
	})

	t.Run("account without bundles is a no-op", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.svc.CancelForAccount(ctx, uuid.New(), entitlement.PolicyImmediate))
	})
}

func TestCheckAddonCreationRights(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed addon under active base", func(t *testing.T) {
		f := newFixture(t)
		cat := evergreenCatalog()
		backup, err := cat.FindPlan(ctx, "backup", catalog.PeriodMonthly, "")
		require.NoError(t, err)

		assert.NoError(t, f.svc.CheckAddonCreationRights(ctx, f.bundleID, backup))
	})

	t.Run("cancelled base means no base", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.CancelForAccount(ctx, f.accountID, entitlement.PolicyImmediate))

		cat := evergreenCatalog()
		backup, err := cat.FindPlan(ctx, "backup", catalog.PeriodMonthly, "")
		require.NoError(t, err)

		assert.ErrorIs(t, f.svc.CheckAddonCreationRights(ctx, f.bundleID, backup), entitlement.ErrNoBaseSubscription)
	})
}
