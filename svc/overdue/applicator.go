package overdue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/eventbus"
	"github.com/dmitrymomot/billingkit/pkg/notification"
	"github.com/dmitrymomot/billingkit/pkg/tags"
	"github.com/dmitrymomot/billingkit/svc/account"
	"github.com/dmitrymomot/billingkit/svc/entitlement"
)

// EntitlementCanceller force-cancels every subscription an account owns.
// Satisfied by entitlement.Service.
type EntitlementCanceller interface {
	CancelForAccount(ctx context.Context, accountID uuid.UUID, policy entitlement.BillingActionPolicy) error
}

// OverdueChangeEvent is published after an account moves between ladder
// states.
type OverdueChangeEvent struct {
	AccountID         uuid.UUID `json:"account_id"`
	PreviousStateName string    `json:"previous_state_name"`
	NextStateName     string    `json:"next_state_name"`
	Effective         time.Time `json:"effective"`
}

func (OverdueChangeEvent) EventName() string { return "overdue.state.changed" }

// Applicator turns an evaluated ladder state into side effects: the stored
// blocking state, forced cancellations, the enter-state email, the pending
// re-check notification and the bus event.
//
// Apply is idempotent with respect to the state itself: re-applying the
// state an account is already in only refreshes the pending re-check and
// performs no other side effect.
type Applicator struct {
	cfg       *Config
	blocking  entitlement.BlockingStore
	sched     notification.Scheduler
	canceller EntitlementCanceller
	accounts  account.Store
	emails    *EmailGenerator
	sender    email.EmailSender
	tagLookup tags.Lookup
	bus       eventbus.Publisher
	clk       clock.Clock
	log       *slog.Logger
}

// NewApplicator creates an Applicator. Config, blocking store and scheduler
// are required; everything else degrades gracefully when nil: no canceller
// means cancellation policies are ignored, no sender or account store means
// no emails, no tag lookup means enforcement is always on.
func NewApplicator(
	cfg *Config,
	blocking entitlement.BlockingStore,
	sched notification.Scheduler,
	canceller EntitlementCanceller,
	accounts account.Store,
	emails *EmailGenerator,
	sender email.EmailSender,
	tagLookup tags.Lookup,
	bus eventbus.Publisher,
	clk clock.Clock,
	log *slog.Logger,
) *Applicator {
	if cfg == nil {
		panic("overdue: config is required")
	}
	if blocking == nil {
		panic("overdue: blocking store is required")
	}
	if sched == nil {
		panic("overdue: notification scheduler is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Applicator{
		cfg:       cfg,
		blocking:  blocking,
		sched:     sched,
		canceller: canceller,
		accounts:  accounts,
		emails:    emails,
		sender:    sender,
		tagLookup: tagLookup,
		bus:       bus,
		clk:       clk,
		log:       log,
	}
}

// Apply moves an account into next. previousStateName is the name of the
// state the account is currently in (ClearStateName when it has none). bs
// may be nil when the account has no unpaid invoices at all.
func (a *Applicator) Apply(ctx context.Context, accountID uuid.UUID, bs *BillingState, previousStateName string, next State) error {
	if a.tagLookup != nil {
		off, err := a.tagLookup.HasTag(ctx, accountID, tags.OverdueEnforcementOff)
		if err != nil {
			return errors.Join(ErrTagLookupFailed, err)
		}
		if off {
			a.log.InfoContext(ctx, "overdue enforcement is off for account, skipping",
				slog.String("account_id", accountID.String()))
			return nil
		}
	}

	now := a.clk.Now()
	schedule, interval := a.nextCheck(bs, next)

	// Re-applying the current state must not duplicate side effects. The
	// re-check still gets refreshed so a condition that only time can
	// satisfy is revisited.
	if previousStateName == next.Name {
		if schedule {
			return a.sched.ScheduleAt(ctx, notification.QueueOverdueCheck, accountID, now.Add(interval))
		}
		return nil
	}

	state := &entitlement.BlockingState{
		ID:               uuid.New(),
		EntityID:         accountID,
		Type:             entitlement.BlockingTypeAccount,
		StateName:        next.Name,
		Service:          entitlement.ServiceOverdue,
		BlockChange:      next.BlockChanges,
		BlockEntitlement: next.BlockEntitlement,
		BlockBilling:     next.BlockBilling,
		EffectiveDate:    now,
		CreatedAt:        now,
	}
	if err := a.blocking.Save(ctx, state); err != nil {
		return errors.Join(ErrStoreStateFailed, err)
	}

	if !next.IsClearState() && next.CancellationPolicy != CancellationNone {
		if err := a.cancelEntitlements(ctx, accountID, next.CancellationPolicy); err != nil {
			return err
		}
	}

	a.sendEnterStateEmail(ctx, accountID, bs, next)

	// Leaving the ladder wipes any stale pending check before the fresh
	// one (if any) goes in. The order matters: cancelling after scheduling
	// would wipe the fresh entry too.
	if next.IsClearState() {
		if err := a.sched.CancelAllFor(ctx, notification.QueueOverdueCheck, accountID); err != nil {
			return err
		}
	}
	if schedule {
		if err := a.sched.ScheduleAt(ctx, notification.QueueOverdueCheck, accountID, now.Add(interval)); err != nil {
			return err
		}
	}

	a.publish(ctx, OverdueChangeEvent{
		AccountID:         accountID,
		PreviousStateName: previousStateName,
		NextStateName:     next.Name,
		Effective:         now,
	})
	return nil
}

// Clear forces an account back to the clear state outside of a regular
// evaluation, e.g. when overdue processing gets disabled for it.
func (a *Applicator) Clear(ctx context.Context, accountID uuid.UUID, previousStateName string) error {
	now := a.clk.Now()

	if previousStateName != ClearStateName && previousStateName != "" {
		state := &entitlement.BlockingState{
			ID:            uuid.New(),
			EntityID:      accountID,
			Type:          entitlement.BlockingTypeAccount,
			StateName:     ClearStateName,
			Service:       entitlement.ServiceOverdue,
			EffectiveDate: now,
			CreatedAt:     now,
		}
		if err := a.blocking.Save(ctx, state); err != nil {
			return errors.Join(ErrStoreStateFailed, err)
		}
	}

	if err := a.sched.CancelAllFor(ctx, notification.QueueOverdueCheck, accountID); err != nil {
		return err
	}

	if previousStateName != ClearStateName && previousStateName != "" {
		a.publish(ctx, OverdueChangeEvent{
			AccountID:         accountID,
			PreviousStateName: previousStateName,
			NextStateName:     ClearStateName,
			Effective:         now,
		})
	}
	return nil
}

// nextCheck decides whether a re-check must be scheduled after entering
// next, and how far out. A non-clear state always wants one. Entering clear
// still wants one when unpaid invoices remain, since a condition keyed on
// invoice age can start matching with no other trigger; the interval then
// comes from the ladder's entry state. A zero interval disables scheduling.
func (a *Applicator) nextCheck(bs *BillingState, next State) (bool, time.Duration) {
	if !next.IsClearState() {
		return next.ReevaluationInterval > 0, next.ReevaluationInterval
	}
	first, ok := a.cfg.FirstState()
	if !ok || bs == nil || bs.DateOfEarliestUnpaidInvoice == nil {
		return false, 0
	}
	return first.ReevaluationInterval > 0, first.ReevaluationInterval
}

func (a *Applicator) cancelEntitlements(ctx context.Context, accountID uuid.UUID, policy CancellationPolicy) error {
	if a.canceller == nil {
		a.log.WarnContext(ctx, "overdue state requests cancellation but no canceller is wired",
			slog.String("account_id", accountID.String()),
			slog.String("policy", string(policy)))
		return nil
	}

	var billingPolicy entitlement.BillingActionPolicy
	switch policy {
	case CancellationEndOfTerm:
		billingPolicy = entitlement.PolicyEndOfTerm
	case CancellationImmediate:
		billingPolicy = entitlement.PolicyImmediate
	default:
		return nil
	}

	if err := a.canceller.CancelForAccount(ctx, accountID, billingPolicy); err != nil {
		return errors.Join(ErrCancellationFailed, err)
	}
	return nil
}

// sendEnterStateEmail notifies the account owner about the new state. Email
// delivery is best effort: every failure here is logged and swallowed, the
// overdue transition itself already happened.
func (a *Applicator) sendEnterStateEmail(ctx context.Context, accountID uuid.UUID, bs *BillingState, next State) {
	if next.EnterStateEmail == nil || a.sender == nil || a.accounts == nil || a.emails == nil {
		return
	}

	acct, err := a.accounts.Get(ctx, accountID)
	if err != nil {
		a.log.ErrorContext(ctx, "failed to load account for overdue email",
			slog.String("account_id", accountID.String()),
			slog.Any("error", err))
		return
	}

	subject, body, err := a.emails.Generate(*next.EnterStateEmail, EmailData{
		Account:      acct,
		BillingState: bs,
		StateName:    next.Name,
	})
	if err != nil {
		a.log.ErrorContext(ctx, "failed to render overdue email",
			slog.String("account_id", accountID.String()),
			slog.String("state", next.Name),
			slog.Any("error", err))
		return
	}

	if err := a.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   acct.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "overdue-" + next.Name,
	}); err != nil {
		a.log.ErrorContext(ctx, "failed to send overdue email",
			slog.String("account_id", accountID.String()),
			slog.String("state", next.Name),
			slog.Any("error", err))
	}
}

func (a *Applicator) publish(ctx context.Context, ev eventbus.Event) {
	if a.bus == nil {
		return
	}
	if err := a.bus.Publish(ctx, ev); err != nil {
		a.log.ErrorContext(ctx, "failed to publish overdue event",
			slog.String("event", ev.EventName()),
			slog.Any("error", err))
	}
}
