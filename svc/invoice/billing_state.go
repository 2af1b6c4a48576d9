package invoice

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/billingkit/svc/overdue"
)

// BillingStateService derives the unpaid-invoice snapshot the overdue
// engine evaluates against. Implements overdue.BillingStateSource.
type BillingStateService struct {
	store Store
}

func NewBillingStateService(store Store) *BillingStateService {
	if store == nil {
		panic("invoice: store is required")
	}
	return &BillingStateService{store: store}
}

// BillingStateFor builds a fresh snapshot of the account's unpaid
// invoices.
func (s *BillingStateService) BillingStateFor(ctx context.Context, accountID uuid.UUID) (*overdue.BillingState, error) {
	unpaid, err := s.store.UnpaidForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	bs := &overdue.BillingState{
		AccountID:               accountID,
		BalanceOfUnpaidInvoices: decimal.Zero,
	}
	for _, inv := range unpaid {
		bs.NumberOfUnpaidInvoices++
		bs.BalanceOfUnpaidInvoices = bs.BalanceOfUnpaidInvoices.Add(inv.Balance)
		if bs.DateOfEarliestUnpaidInvoice == nil || inv.InvoiceDate.Before(*bs.DateOfEarliestUnpaidInvoice) {
			d := inv.InvoiceDate
			bs.DateOfEarliestUnpaidInvoice = &d
		}
	}
	return bs, nil
}
