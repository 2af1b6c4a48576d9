package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/pkg/eventbus"
	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// NewEvent is one caller-requested event in a repair edit. PHASE transitions
// are never requested; the engine re-derives them from the catalog.
type NewEvent struct {
	Type          EventType
	Spec          catalog.PlanSpecifier
	RequestedDate time.Time
	EffectiveDate time.Time
}

// SubscriptionEdit is the proposed rewrite of one subscription's timeline:
// drop the named events, insert the new ones.
type SubscriptionEdit struct {
	SubscriptionID  uuid.UUID
	DeletedEventIDs []uuid.UUID
	NewEvents       []NewEvent
}

// SubscriptionRepairView reports the outcome of a repair for one
// subscription: which events survived, which were added (including
// system-derived PHASE entries and trickle-down cancellations) and which
// were deleted, plus the resulting projected view.
type SubscriptionRepairView struct {
	SubscriptionID uuid.UUID
	Category       catalog.ProductCategory
	NewVersion     int64
	ExistingEvents []Event
	NewEvents      []Event
	DeletedEvents  []Event
	View           *TimelineView
}

// BundleRepairResult is the full outcome of a bundle repair call.
type BundleRepairResult struct {
	BundleID      uuid.UUID
	ViewID        string
	DryRun        bool
	Subscriptions []SubscriptionRepairView
}

// TimelineChangedEvent is published once per touched subscription after a
// committed repair.
type TimelineChangedEvent struct {
	BundleID       uuid.UUID `json:"bundle_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	OldVersion     int64     `json:"old_version"`
	NewVersion     int64     `json:"new_version"`
}

func (TimelineChangedEvent) EventName() string { return "subscription.timeline.changed" }

// RepairEngine applies retroactive timeline rewrites to a bundle's
// subscriptions while keeping base and add-on timelines mutually
// consistent. Dry-run mode computes the full outcome without persisting
// anything.
type RepairEngine struct {
	store     Store
	cat       catalog.Catalog
	rules     *AddonRules
	projector *Projector
	bus       eventbus.Publisher
	clk       clock.Clock
	log       *slog.Logger
}

// NewRepairEngine creates a RepairEngine. Panics on nil store or catalog;
// bus, clock and logger fall back to safe defaults.
func NewRepairEngine(store Store, cat catalog.Catalog, bus eventbus.Publisher, clk clock.Clock, log *slog.Logger) *RepairEngine {
	if store == nil {
		panic("subscription: store is required")
	}
	if cat == nil {
		panic("subscription: catalog is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &RepairEngine{
		store:     store,
		cat:       cat,
		rules:     NewAddonRules(cat),
		projector: NewProjector(cat, clk),
		bus:       bus,
		clk:       clk,
		log:       log,
	}
}

// workingCopy wraps a subscription snapshot with its in-progress event set,
// tagged with the prospective next version. Composition instead of
// inheriting from the live entity keeps dry runs trivially pure.
type workingCopy struct {
	sub        *Subscription
	newVersion int64
	events     []Event
	deleted    []Event
	added      []Event
	edited     bool
	view       *TimelineView
}

// lastUserEffective returns the effective date of the last non-PHASE event
// in the working set.
func (wc *workingCopy) lastUserEffective() time.Time {
	var last time.Time
	for _, e := range SortEvents(wc.events) {
		if e.Type != EventPhase {
			last = e.EffectiveDate
		}
	}
	return last
}

// editEffective returns the effective date of the change this edit made to
// the timeline: the latest user event it inserted or deleted. A surviving
// future event (say, a pending CANCEL) must not move this date, so the
// surviving set only serves as a fallback when the edit was a no-op.
func (wc *workingCopy) editEffective() time.Time {
	var last time.Time
	for _, e := range wc.deleted {
		if e.Type != EventPhase && e.EffectiveDate.After(last) {
			last = e.EffectiveDate
		}
	}
	for _, e := range wc.added {
		if e.Type != EventPhase && e.EffectiveDate.After(last) {
			last = e.EffectiveDate
		}
	}
	if last.IsZero() {
		return wc.lastUserEffective()
	}
	return last
}

// Repair validates and applies the proposed edits against the bundle.
//
// viewID is the optimistic-concurrency token obtained from View. Commit
// mode re-checks it inside the store transaction; a concurrent change to
// the bundle fails the call with ErrConcurrentRepair and persists nothing.
// Validation failures abort the whole call regardless of mode: a repair is
// all-or-nothing across the edit set.
func (re *RepairEngine) Repair(ctx context.Context, bundleID uuid.UUID, viewID string, edits []SubscriptionEdit, dryRun bool) (*BundleRepairResult, error) {
	bundle, err := re.store.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	subs, err := re.store.GetSubscriptionsForBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if ComputeViewID(subs) != viewID {
		return nil, ErrConcurrentRepair
	}

	byID := make(map[uuid.UUID]*Subscription, len(subs))
	var base *Subscription
	for _, s := range subs {
		byID[s.ID] = s
		if s.Category == catalog.CategoryBase {
			base = s
		}
	}

	editedIDs := make(map[uuid.UUID]bool, len(edits))
	for _, e := range edits {
		editedIDs[e.SubscriptionID] = true
	}

	// Base edits run first so trickle-down sees the base's final timeline.
	ordered := make([]SubscriptionEdit, 0, len(edits))
	for _, e := range edits {
		if base != nil && e.SubscriptionID == base.ID {
			ordered = append(ordered, e)
		}
	}
	for _, e := range edits {
		if base == nil || e.SubscriptionID != base.ID {
			ordered = append(ordered, e)
		}
	}

	copies := make(map[uuid.UUID]*workingCopy)
	var baseCopy *workingCopy
	for _, edit := range ordered {
		sub, ok := byID[edit.SubscriptionID]
		if !ok {
			return nil, newRepairError(edit.SubscriptionID, "", ErrSubscriptionNotFound)
		}

		// Add-on rights are checked against the base timeline as repaired
		// in this same call, not the stale persisted one.
		var baseEvents []Event
		if base != nil && sub.ID != base.ID {
			if bc, ok := copies[base.ID]; ok {
				baseEvents = bc.events
			} else {
				baseEvents = base.ActiveEvents()
			}
		}

		wc, err := re.applyEdit(ctx, sub, edit, baseEvents)
		if err != nil {
			return nil, err
		}
		copies[sub.ID] = wc
		if base != nil && sub.ID == base.ID {
			baseCopy = wc
		}
	}

	// Base timeline changed: prune add-ons whose plan is no longer allowed.
	if baseCopy != nil {
		if err := re.trickleDown(ctx, baseCopy, subs, editedIDs, copies); err != nil {
			return nil, err
		}
	}

	result := &BundleRepairResult{BundleID: bundle.ID, ViewID: viewID, DryRun: dryRun}
	for _, s := range subs {
		wc, ok := copies[s.ID]
		if !ok {
			continue
		}
		result.Subscriptions = append(result.Subscriptions, SubscriptionRepairView{
			SubscriptionID: s.ID,
			Category:       s.Category,
			NewVersion:     wc.newVersion,
			ExistingEvents: existingOf(wc),
			NewEvents:      wc.added,
			DeletedEvents:  wc.deleted,
			View:           wc.view,
		})
	}

	if dryRun {
		return result, nil
	}

	updates := make([]VersionedEvents, 0, len(copies))
	for _, wc := range copies {
		updates = append(updates, VersionedEvents{
			SubscriptionID: wc.sub.ID,
			NewVersion:     wc.newVersion,
			Events:         wc.events,
		})
	}
	if err := re.store.ReplaceEvents(ctx, bundleID, viewID, updates); err != nil {
		return nil, err
	}

	for _, wc := range copies {
		ev := TimelineChangedEvent{
			BundleID:       bundle.ID,
			SubscriptionID: wc.sub.ID,
			OldVersion:     wc.sub.ActiveVersion,
			NewVersion:     wc.newVersion,
		}
		if re.bus != nil {
			if err := re.bus.Publish(ctx, ev); err != nil {
				re.log.ErrorContext(ctx, "failed to publish timeline change",
					slog.String("subscription_id", wc.sub.ID.String()),
					slog.Any("error", err))
			}
		}
	}

	// Fresh token over the committed state so the caller can chain repairs.
	committed := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if wc, ok := copies[s.ID]; ok {
			cp := s.Clone()
			cp.ActiveVersion = wc.newVersion
			cp.Events = wc.events
			committed = append(committed, cp)
		} else {
			committed = append(committed, s)
		}
	}
	result.ViewID = ComputeViewID(committed)
	return result, nil
}

// applyEdit builds the working copy for one edited subscription: deletions,
// caller events, re-derived phases, projection.
func (re *RepairEngine) applyEdit(ctx context.Context, sub *Subscription, edit SubscriptionEdit, baseEvents []Event) (*workingCopy, error) {
	now := re.clk.Now()
	newVersion := sub.ActiveVersion + 1

	wc := &workingCopy{sub: sub, newVersion: newVersion, edited: true}

	deleted := make(map[uuid.UUID]bool, len(edit.DeletedEventIDs))
	for _, id := range edit.DeletedEventIDs {
		deleted[id] = true
	}

	active := sub.ActiveEvents()
	known := make(map[uuid.UUID]bool, len(active))
	var lastSurvivingUser time.Time
	for _, e := range active {
		known[e.ID] = true
		if deleted[e.ID] {
			wc.deleted = append(wc.deleted, e)
			continue
		}
		e.ActiveVersion = newVersion
		wc.events = append(wc.events, e)
		if e.Type != EventPhase {
			lastSurvivingUser = e.EffectiveDate
		}
	}
	for id := range deleted {
		if !known[id] {
			return nil, newRepairError(sub.ID, "", ErrEventNotFound)
		}
	}

	for _, ne := range edit.NewEvents {
		switch ne.Type {
		case EventCreate, EventReCreate, EventChange, EventCancel:
		case EventPhase:
			// System-derived; silently ignored when submitted.
			continue
		default:
			return nil, newRepairError(sub.ID, ne.Type, ErrUnknownTransitionType)
		}

		if ne.EffectiveDate.Before(lastSurvivingUser) {
			return nil, newRepairError(sub.ID, ne.Type, &InvalidDateSequenceError{
				SubscriptionID: sub.ID,
				EventType:      ne.Type,
				Effective:      ne.EffectiveDate,
				Boundary:       lastSurvivingUser,
			})
		}

		spec := ne.Spec
		if ne.Type != EventCancel {
			plan, err := re.cat.FindPlan(ctx, spec.ProductName, spec.BillingPeriod, spec.PriceList)
			if err != nil {
				return nil, newRepairError(sub.ID, ne.Type, err)
			}
			if spec.PhaseType == "" {
				if initial, ok := plan.InitialPhase(); ok {
					spec.PhaseType = initial.Type
				}
			}

			// A repaired add-on must still be purchasable under the base
			// product in effect at the event's date.
			if sub.Category == catalog.CategoryAddOn && baseEvents != nil {
				baseProduct, err := re.baseProductAt(ctx, baseEvents, ne.EffectiveDate)
				if err != nil {
					return nil, newRepairError(sub.ID, ne.Type, err)
				}
				if err := re.rules.CheckCreationRights(ctx, baseProduct, plan); err != nil {
					return nil, newRepairError(sub.ID, ne.Type, err)
				}
			}
		}

		ev := Event{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			Type:           ne.Type,
			EffectiveDate:  ne.EffectiveDate,
			RequestedDate:  ne.RequestedDate,
			CreatedDate:    now,
			ActiveVersion:  newVersion,
			Spec:           spec,
		}
		wc.events = append(wc.events, ev)
		wc.added = append(wc.added, ev)
		if ne.EffectiveDate.After(lastSurvivingUser) {
			lastSurvivingUser = ne.EffectiveDate
		}
	}

	return wc, re.finishCopy(ctx, wc)
}

// finishCopy re-derives PHASE events and projects the working set.
func (re *RepairEngine) finishCopy(ctx context.Context, wc *workingCopy) error {
	before := make(map[uuid.UUID]bool, len(wc.events))
	for _, e := range wc.events {
		before[e.ID] = true
	}

	events, err := re.projector.MaterializePhases(ctx, wc.events, wc.newVersion)
	if err != nil {
		return newRepairError(wc.sub.ID, "", err)
	}
	wc.events = events

	// Re-derived PHASE entries are new events from the caller's viewpoint.
	for _, e := range wc.events {
		if !before[e.ID] {
			wc.added = append(wc.added, e)
		}
	}

	view, err := Project(wc.events, re.clk.Now())
	if err != nil {
		return newRepairError(wc.sub.ID, "", err)
	}
	wc.view = view
	return nil
}

// trickleDown auto-cancels every add-on whose plan is no longer allowed
// under the base's resulting product. Add-ons already cancelled or
// explicitly edited in the same call are left alone.
func (re *RepairEngine) trickleDown(ctx context.Context, baseCopy *workingCopy, subs []*Subscription, editedIDs map[uuid.UUID]bool, copies map[uuid.UUID]*workingCopy) error {
	now := re.clk.Now()
	effective := baseCopy.editEffective()

	var baseProduct *catalog.Product
	if !baseCopy.view.IsCancelled() {
		plan, err := re.cat.FindPlan(ctx,
			baseCopy.view.CurrentPlan.ProductName,
			baseCopy.view.CurrentPlan.BillingPeriod,
			baseCopy.view.CurrentPlan.PriceList)
		if err != nil {
			return newRepairError(baseCopy.sub.ID, "", err)
		}
		baseProduct = &plan.Product
	}

	for _, addon := range subs {
		if addon.Category != catalog.CategoryAddOn || editedIDs[addon.ID] {
			continue
		}

		view, err := Project(addon.ActiveEvents(), now)
		if err != nil {
			return newRepairError(addon.ID, "", err)
		}
		if view.IsCancelled() || view.State == StatePending {
			continue
		}

		addonPlan, err := re.cat.FindPlan(ctx,
			view.CurrentPlan.ProductName,
			view.CurrentPlan.BillingPeriod,
			view.CurrentPlan.PriceList)
		if err != nil {
			return newRepairError(addon.ID, "", err)
		}

		allowed, err := re.rules.Allowed(ctx, baseProduct, addonPlan)
		if err != nil {
			return newRepairError(addon.ID, "", err)
		}
		if allowed {
			continue
		}

		// The base edit may predate this add-on's own start; a CANCEL can
		// never take effect before the timeline it ends.
		cancelAt := effective
		if cancelAt.Before(view.StartDate) {
			cancelAt = view.StartDate
		}

		newVersion := addon.ActiveVersion + 1
		wc := &workingCopy{sub: addon, newVersion: newVersion}
		for _, e := range addon.ActiveEvents() {
			e.ActiveVersion = newVersion
			wc.events = append(wc.events, e)
		}
		cancel := Event{
			ID:             uuid.New(),
			SubscriptionID: addon.ID,
			Type:           EventCancel,
			EffectiveDate:  cancelAt,
			RequestedDate:  now,
			CreatedDate:    now,
			ActiveVersion:  newVersion,
		}
		wc.events = append(wc.events, cancel)
		wc.added = append(wc.added, cancel)

		if err := re.finishCopy(ctx, wc); err != nil {
			return err
		}
		copies[addon.ID] = wc
	}
	return nil
}

// baseProductAt resolves the base product in effect at the given time from
// the supplied base event log, or nil when the base is cancelled by then.
func (re *RepairEngine) baseProductAt(ctx context.Context, baseEvents []Event, at time.Time) (*catalog.Product, error) {
	view, err := Project(baseEvents, at)
	if err != nil {
		return nil, err
	}
	if view.IsCancelled() || view.State == StatePending {
		return nil, nil
	}
	plan, err := re.cat.FindPlan(ctx, view.CurrentPlan.ProductName, view.CurrentPlan.BillingPeriod, view.CurrentPlan.PriceList)
	if err != nil {
		return nil, err
	}
	return &plan.Product, nil
}

// View assembles the current repair view of a bundle: the token plus, per
// subscription, the existing events callers may delete. Callers feed the
// token back into Repair.
func (re *RepairEngine) View(ctx context.Context, bundleID uuid.UUID) (string, []*Subscription, error) {
	if _, err := re.store.GetBundle(ctx, bundleID); err != nil {
		return "", nil, err
	}
	subs, err := re.store.GetSubscriptionsForBundle(ctx, bundleID)
	if err != nil {
		return "", nil, err
	}
	return ComputeViewID(subs), subs, nil
}

func existingOf(wc *workingCopy) []Event {
	addedIDs := make(map[uuid.UUID]bool, len(wc.added))
	for _, e := range wc.added {
		addedIDs[e.ID] = true
	}
	var existing []Event
	for _, e := range SortEvents(wc.events) {
		if !addedIDs[e.ID] {
			existing = append(existing, e)
		}
	}
	return existing
}
