package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/svc/invoice"
)

func unpaidInvoice(accountID uuid.UUID, date time.Time, balance string) *invoice.Invoice {
	return &invoice.Invoice{
		ID:          uuid.New(),
		AccountID:   accountID,
		InvoiceDate: date,
		TargetDate:  date,
		Currency:    "USD",
		Balance:     decimal.RequireFromString(balance),
	}
}

func TestBillingStateFor(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates unpaid invoices", func(t *testing.T) {
		store := invoice.NewMemoryStore()
		accountID := uuid.New()

		require.NoError(t, store.Save(ctx, unpaidInvoice(accountID, day(2014, 3, 1), "50.00")))
		require.NoError(t, store.Save(ctx, unpaidInvoice(accountID, day(2014, 2, 1), "99.90")))
		paid := unpaidInvoice(accountID, day(2014, 1, 1), "0")
		require.NoError(t, store.Save(ctx, paid))
		// Another account's debt must not leak in.
		require.NoError(t, store.Save(ctx, unpaidInvoice(uuid.New(), day(2014, 1, 1), "1000")))

		bs, err := invoice.NewBillingStateService(store).BillingStateFor(ctx, accountID)
		require.NoError(t, err)

		assert.Equal(t, accountID, bs.AccountID)
		assert.Equal(t, 2, bs.NumberOfUnpaidInvoices)
		assert.True(t, bs.BalanceOfUnpaidInvoices.Equal(decimal.RequireFromString("149.90")),
			"got %s", bs.BalanceOfUnpaidInvoices)
		require.NotNil(t, bs.DateOfEarliestUnpaidInvoice)
		assert.Equal(t, day(2014, 2, 1), *bs.DateOfEarliestUnpaidInvoice)
	})

	t.Run("no unpaid invoices", func(t *testing.T) {
		store := invoice.NewMemoryStore()
		accountID := uuid.New()

		bs, err := invoice.NewBillingStateService(store).BillingStateFor(ctx, accountID)
		require.NoError(t, err)

		assert.Zero(t, bs.NumberOfUnpaidInvoices)
		assert.True(t, bs.BalanceOfUnpaidInvoices.IsZero())
		assert.Nil(t, bs.DateOfEarliestUnpaidInvoice)
	})

	t.Run("nil store panics", func(t *testing.T) {
		assert.Panics(t, func() { invoice.NewBillingStateService(nil) })
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := invoice.NewMemoryStore()
	accountID := uuid.New()

	inv := unpaidInvoice(accountID, day(2014, 3, 1), "50.00")
	inv.Items = []invoice.Item{{
		ID:        uuid.New(),
		InvoiceID: inv.ID,
		Type:      invoice.ItemRecurring,
		PlanName:  "standard-monthly",
		StartDate: day(2014, 3, 1),
		Amount:    decimal.RequireFromString("50.00"),
		Currency:  "USD",
	}}
	require.NoError(t, store.Save(ctx, inv))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.Get(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)

		got.Items[0].Amount = decimal.Zero
		again, err := store.Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, again.Items[0].Amount.Equal(decimal.RequireFromString("50.00")))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
	})

	t.Run("unpaid ordered by invoice date", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, unpaidInvoice(accountID, day(2014, 1, 1), "10")))
		require.NoError(t, store.Save(ctx, unpaidInvoice(accountID, day(2014, 2, 1), "20")))

		unpaid, err := store.UnpaidForAccount(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, unpaid, 3)
		assert.Equal(t, day(2014, 1, 1), unpaid[0].InvoiceDate)
		assert.Equal(t, day(2014, 2, 1), unpaid[1].InvoiceDate)
		assert.Equal(t, day(2014, 3, 1), unpaid[2].InvoiceDate)
	})

	t.Run("save replaces by id", func(t *testing.T) {
		updated := *inv
		updated.Balance = decimal.Zero
		require.NoError(t, store.Save(ctx, &updated))

		unpaid, err := store.UnpaidForAccount(ctx, accountID)
		require.NoError(t, err)
		assert.Len(t, unpaid, 2, "paid invoice drops out of the unpaid set")
	})
}

func TestInvoiceTotals(t *testing.T) {
	inv := &invoice.Invoice{
		Items: []invoice.Item{
			{Type: invoice.ItemRecurring, Amount: decimal.RequireFromString("30")},
			{Type: invoice.ItemRepairAdj, Amount: decimal.RequireFromString("-10")},
		},
		Balance: decimal.RequireFromString("20"),
	}
	assert.True(t, inv.Total().Equal(decimal.RequireFromString("20")))
	assert.True(t, inv.IsUnpaid())

	inv.Balance = decimal.Zero
	assert.False(t, inv.IsUnpaid())
}
