package overdue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClearStateName is the implicit state of an account with no overdue
// problems. It is not part of the configured ladder.
const ClearStateName = "__OVERDUE_CLEAR__"

// CancellationPolicy controls whether entering a state force-cancels the
// account's entitlements, and when the cancellation takes effect.
type CancellationPolicy string

const (
	CancellationNone      CancellationPolicy = "NONE"
	CancellationEndOfTerm CancellationPolicy = "END_OF_TERM"
	CancellationImmediate CancellationPolicy = "IMMEDIATE"
)

// BillingState is the point-in-time snapshot of an account's unpaid
// invoices that overdue evaluation runs against. Constructed fresh per
// evaluation, never cached.
type BillingState struct {
	AccountID                   uuid.UUID
	NumberOfUnpaidInvoices      int
	BalanceOfUnpaidInvoices     decimal.Decimal
	DateOfEarliestUnpaidInvoice *time.Time
}

// Condition is the predicate attached to a ladder state. All set criteria
// must hold (logical AND); a condition with no criteria never matches.
type Condition struct {
	// TimeSinceEarliestUnpaidInvoiceInDays matches once the earliest unpaid
	// invoice is at least this many days old.
	TimeSinceEarliestUnpaidInvoiceInDays int

	// TotalUnpaidInvoiceBalanceEqualsOrExceeds matches once the unpaid
	// balance reaches the threshold. Nil disables the criterion.
	TotalUnpaidInvoiceBalanceEqualsOrExceeds *decimal.Decimal

	// NumberOfUnpaidInvoicesEqualsOrExceeds matches once the unpaid invoice
	// count reaches the threshold. Zero disables the criterion.
	NumberOfUnpaidInvoicesEqualsOrExceeds int
}

// Matches evaluates the condition against a billing state at a given time.
func (c Condition) Matches(bs *BillingState, now time.Time) bool {
	if bs == nil {
		return false
	}

	criteria := 0

	if c.TimeSinceEarliestUnpaidInvoiceInDays > 0 {
		criteria++
		if bs.DateOfEarliestUnpaidInvoice == nil {
			return false
		}
		age := bs.DateOfEarliestUnpaidInvoice.AddDate(0, 0, c.TimeSinceEarliestUnpaidInvoiceInDays)
		if now.Before(age) {
			return false
		}
	}

	if c.TotalUnpaidInvoiceBalanceEqualsOrExceeds != nil {
		criteria++
		if bs.BalanceOfUnpaidInvoices.LessThan(*c.TotalUnpaidInvoiceBalanceEqualsOrExceeds) {
			return false
		}
	}

	if c.NumberOfUnpaidInvoicesEqualsOrExceeds > 0 {
		criteria++
		if bs.NumberOfUnpaidInvoices < c.NumberOfUnpaidInvoicesEqualsOrExceeds {
			return false
		}
	}

	return criteria > 0
}

// EmailNotification configures the email sent on entering a state.
type EmailNotification struct {
	Subject      string
	TemplateName string
	IsHTML       bool
}

// State is one node of the overdue ladder.
type State struct {
	Name               string
	Condition          Condition
	BlockChanges       bool
	BlockEntitlement   bool
	BlockBilling       bool
	CancellationPolicy CancellationPolicy

	// ReevaluationInterval schedules the next overdue check after entering
	// this state. Zero means no further scheduling, which is tolerated,
	// not an error.
	ReevaluationInterval time.Duration

	// EnterStateEmail, when set, triggers a notification email on entering
	// this state. Email failures never fail the overdue transition.
	EnterStateEmail *EmailNotification

	clear bool
}

// IsClearState reports whether this is the implicit clear state.
func (s State) IsClearState() bool {
	return s.clear
}

// Clear returns the implicit clear state.
func Clear() State {
	return State{Name: ClearStateName, clear: true}
}

// Config is the configured ladder, ordered most severe first.
type Config struct {
	States []State
}

// Evaluate walks the ladder top-down and returns the first state whose
// condition matches, or the clear state when none does.
func (c *Config) Evaluate(bs *BillingState, now time.Time) State {
	for _, s := range c.States {
		if s.Condition.Matches(bs, now) {
			return s
		}
	}
	return Clear()
}

// FirstState returns the entry node of the ladder (the least severe
// configured state, listed last). Its re-evaluation interval is used when
// an account returns to clear but still carries unpaid invoices.
func (c *Config) FirstState() (State, bool) {
	if len(c.States) == 0 {
		return State{}, false
	}
	return c.States[len(c.States)-1], true
}

// StateByName finds a ladder state by name. The clear state resolves too.
func (c *Config) StateByName(name string) (State, bool) {
	if name == ClearStateName || name == "" {
		return Clear(), true
	}
	for _, s := range c.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}
