// Package overdue implements the dunning state machine: a configured ladder
// of increasingly severe states an account walks through while it carries
// unpaid invoices.
//
// Evaluation is stateless: the ladder is walked top-down (most severe
// first) against a fresh billing-state snapshot, and the first matching
// state wins. The Applicator then turns the result into side effects. The
// engine never polls; it schedules a single pending re-check per account
// whenever a future evaluation could change the outcome.
package overdue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/svc/entitlement"
)

// BillingStateSource builds the unpaid-invoice snapshot for an account.
// Implemented by the invoice subsystem; always consulted fresh, never
// cached across evaluations.
type BillingStateSource interface {
	BillingStateFor(ctx context.Context, accountID uuid.UUID) (*BillingState, error)
}

// Service is the entry point of the overdue engine. Refresh is invoked on
// payment failures, invoice updates and fired re-check notifications.
type Service struct {
	cfg        *Config
	billing    BillingStateSource
	blocking   entitlement.BlockingStore
	applicator *Applicator
	clk        clock.Clock
	log        *slog.Logger
}

// NewService creates the overdue Service. All dependencies except clock and
// logger are required.
func NewService(cfg *Config, billing BillingStateSource, blocking entitlement.BlockingStore, applicator *Applicator, clk clock.Clock, log *slog.Logger) *Service {
	if cfg == nil {
		panic("overdue: config is required")
	}
	if billing == nil {
		panic("overdue: billing state source is required")
	}
	if blocking == nil {
		panic("overdue: blocking store is required")
	}
	if applicator == nil {
		panic("overdue: applicator is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, billing: billing, blocking: blocking, applicator: applicator, clk: clk, log: log}
}

// Refresh re-evaluates an account against the ladder and applies the
// resulting state. Returns the state the account ends up in.
func (s *Service) Refresh(ctx context.Context, accountID uuid.UUID) (State, error) {
	previous, err := s.previousStateName(ctx, accountID)
	if err != nil {
		return State{}, err
	}

	bs, err := s.billing.BillingStateFor(ctx, accountID)
	if err != nil {
		return State{}, err
	}

	next := s.cfg.Evaluate(bs, s.clk.Now())

	s.log.DebugContext(ctx, "overdue evaluation",
		slog.String("account_id", accountID.String()),
		slog.String("previous", previous),
		slog.String("next", next.Name))

	if err := s.applicator.Apply(ctx, accountID, bs, previous, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Clear forces an account out of the ladder regardless of its billing
// state, e.g. when overdue processing gets switched off for it.
func (s *Service) Clear(ctx context.Context, accountID uuid.UUID) error {
	previous, err := s.previousStateName(ctx, accountID)
	if err != nil {
		return err
	}
	return s.applicator.Clear(ctx, accountID, previous)
}

// CurrentState returns the ladder state an account is currently in.
func (s *Service) CurrentState(ctx context.Context, accountID uuid.UUID) (State, error) {
	name, err := s.previousStateName(ctx, accountID)
	if err != nil {
		return State{}, err
	}
	st, ok := s.cfg.StateByName(name)
	if !ok {
		// A stored state that vanished from the ladder configuration. The
		// account gets re-evaluated on its next refresh; until then report
		// it as clear rather than failing reads.
		s.log.WarnContext(ctx, "stored overdue state missing from configuration",
			slog.String("account_id", accountID.String()),
			slog.String("state", name))
		return Clear(), nil
	}
	return st, nil
}

func (s *Service) previousStateName(ctx context.Context, accountID uuid.UUID) (string, error) {
	current, err := s.blocking.Current(ctx, accountID, entitlement.ServiceOverdue)
	if err != nil {
		return "", err
	}
	if current == nil {
		return ClearStateName, nil
	}
	return current.StateName, nil
}
