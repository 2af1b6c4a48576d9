package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

// ItemType distinguishes how an invoice line came to be.
type ItemType string

const (
	ItemRecurring ItemType = "RECURRING"
	ItemFixed     ItemType = "FIXED"
	ItemRepairAdj ItemType = "REPAIR_ADJ"
	ItemCreditAdj ItemType = "CREDIT_ADJ"
)

// Item is one line of an invoice.
type Item struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	SubscriptionID uuid.UUID
	Type           ItemType
	PlanName       string
	PhaseName      string
	StartDate      time.Time
	EndDate        *time.Time
	Amount         decimal.Decimal
	Currency       string
}

// Invoice groups the charges of one billing run for an account.
type Invoice struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	InvoiceDate time.Time
	TargetDate  time.Time
	Currency    string
	Items       []Item
	Balance     decimal.Decimal
}

// Total sums the item amounts.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// IsUnpaid reports whether any balance remains.
func (inv *Invoice) IsUnpaid() bool {
	return inv.Balance.IsPositive()
}

// Store persists invoices.
type Store interface {
	Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, inv *Invoice) error

	// UnpaidForAccount returns the account's invoices with a positive
	// balance, ordered by invoice date.
	UnpaidForAccount(ctx context.Context, accountID uuid.UUID) ([]*Invoice, error)
}
