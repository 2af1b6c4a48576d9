package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// State is the derived lifecycle state of a subscription at a point in time.
type State string

const (
	// StatePending means the timeline starts in the future.
	StatePending State = "PENDING"
	// StateActive means a plan is currently in effect.
	StateActive State = "ACTIVE"
	// StateBlocked means the entitlement is paused. Blocking is overlaid by
	// the entitlement service; pure event-log projection never yields it.
	StateBlocked State = "BLOCKED"
	// StateCancelled means a cancel event has taken effect.
	StateCancelled State = "CANCELLED"
)

// TimelineView is the result of projecting one subscription version's event
// log as of a given time.
type TimelineView struct {
	SubscriptionID uuid.UUID
	State          State

	// CurrentPlan and CurrentPhase are zero once cancelled; the last-active
	// fields are retained so billing can still resolve what was sold.
	CurrentPlan  catalog.PlanSpecifier
	CurrentPhase catalog.PhaseType

	LastActivePlan  catalog.PlanSpecifier
	LastActivePhase catalog.PhaseType

	StartDate time.Time
	EndDate   time.Time

	// FutureEvents are the pending entries strictly after the projection
	// time, in replay order.
	FutureEvents []Event
}

// Project derives the timeline view from one version's events as of the
// given time. It is a pure function: identical (type, effectiveDate) inputs
// produce identical views regardless of input storage order.
//
// Events at exactly asOf count as past, matching the engine's convention
// that an effective date is the first instant a transition holds.
func Project(events []Event, asOf time.Time) (*TimelineView, error) {
	sorted := SortEvents(events)

	view := &TimelineView{State: StatePending}
	if len(sorted) == 0 {
		return view, nil
	}
	view.SubscriptionID = sorted[0].SubscriptionID

	// Locate the timeline start for validation: every CHANGE/CANCEL must
	// fall at or after it.
	for _, e := range sorted {
		if e.Type.IsStart() {
			view.StartDate = e.EffectiveDate
			break
		}
	}

	for _, e := range sorted {
		switch e.Type {
		case EventChange, EventCancel:
			if view.StartDate.IsZero() || e.EffectiveDate.Before(view.StartDate) {
				return nil, &InvalidDateSequenceError{
					SubscriptionID: e.SubscriptionID,
					EventType:      e.Type,
					Effective:      e.EffectiveDate,
					Boundary:       view.StartDate,
				}
			}
		}

		if e.EffectiveDate.After(asOf) {
			view.FutureEvents = append(view.FutureEvents, e)
			continue
		}

		switch e.Type {
		case EventCreate, EventReCreate, EventTransfer:
			view.State = StateActive
			view.EndDate = time.Time{}
			view.setPlan(e.Spec)
		case EventChange:
			view.State = StateActive
			view.setPlan(e.Spec)
		case EventPhase:
			view.CurrentPhase = e.Spec.PhaseType
			view.LastActivePhase = e.Spec.PhaseType
		case EventCancel:
			view.State = StateCancelled
			view.EndDate = e.EffectiveDate
			view.CurrentPlan = catalog.PlanSpecifier{}
			view.CurrentPhase = ""
		}
	}

	return view, nil
}

func (v *TimelineView) setPlan(spec catalog.PlanSpecifier) {
	v.CurrentPlan = spec
	v.CurrentPhase = spec.PhaseType
	v.LastActivePlan = spec
	v.LastActivePhase = spec.PhaseType
}

// IsCancelled reports whether the view ends in a cancelled state.
func (v *TimelineView) IsCancelled() bool {
	return v.State == StateCancelled
}

// Projector materializes system-derived PHASE events from catalog phase
// durations. Projection itself (Project) stays catalog-free; only phase
// derivation needs plan lookups.
type Projector struct {
	cat catalog.Catalog
	clk clock.Clock
}

// NewProjector creates a Projector. Panics on nil dependencies to fail fast
// at construction.
func NewProjector(cat catalog.Catalog, clk clock.Clock) *Projector {
	if cat == nil {
		panic("subscription: catalog is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Projector{cat: cat, clk: clk}
}

// MaterializePhases rebuilds the PHASE entries of one version's event log.
// Existing PHASE events are discarded and re-derived from the user events
// and the catalog, so the log is always consistent after a repair rewrites
// user events. The returned slice is in replay order.
func (p *Projector) MaterializePhases(ctx context.Context, events []Event, version int64) ([]Event, error) {
	sorted := SortEvents(events)

	user := make([]Event, 0, len(sorted))
	for _, e := range sorted {
		if e.Type != EventPhase {
			user = append(user, e)
		}
	}

	out := make([]Event, len(user))
	copy(out, user)
	now := p.clk.Now()

	for i, e := range user {
		if e.Type == EventCancel {
			continue
		}

		plan, err := p.cat.FindPlan(ctx, e.Spec.ProductName, e.Spec.BillingPeriod, e.Spec.PriceList)
		if err != nil {
			return nil, err
		}

		startPhase := e.Spec.PhaseType
		if startPhase == "" {
			initial, ok := plan.InitialPhase()
			if !ok {
				continue
			}
			startPhase = initial.Type
		}

		// Phase transitions only run until the next user event rewrites the
		// timeline.
		var limit time.Time
		if i+1 < len(user) {
			limit = user[i+1].EffectiveDate
		}

		ph, ok := plan.PhaseByType(startPhase)
		if !ok {
			continue
		}
		at := e.EffectiveDate
		for !ph.Duration.IsUnlimited() {
			next, ok := plan.PhaseAfter(ph.Type)
			if !ok {
				break
			}
			at = ph.Duration.AddTo(at)
			if !limit.IsZero() && !at.Before(limit) {
				break
			}
			out = append(out, Event{
				ID:             uuid.New(),
				SubscriptionID: e.SubscriptionID,
				Type:           EventPhase,
				EffectiveDate:  at,
				RequestedDate:  at,
				CreatedDate:    now,
				ActiveVersion:  version,
				Spec: catalog.PlanSpecifier{
					ProductName:   e.Spec.ProductName,
					BillingPeriod: e.Spec.BillingPeriod,
					PriceList:     e.Spec.PriceList,
					PhaseType:     next.Type,
				},
			})
			ph = next
		}
	}

	return SortEvents(out), nil
}
