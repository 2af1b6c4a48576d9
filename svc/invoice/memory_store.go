package invoice

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store for testing and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*Invoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: make(map[uuid.UUID]*Invoice)}
}

func (ms *MemoryStore) Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	inv, ok := ms.invoices[invoiceID]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := cloneInvoice(inv)
	return &cp, nil
}

func (ms *MemoryStore) Save(ctx context.Context, inv *Invoice) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := cloneInvoice(inv)
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
		inv.ID = cp.ID
	}
	ms.invoices[cp.ID] = &cp
	return nil
}

func (ms *MemoryStore) UnpaidForAccount(ctx context.Context, accountID uuid.UUID) ([]*Invoice, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Invoice
	for _, inv := range ms.invoices {
		if inv.AccountID == accountID && inv.IsUnpaid() {
			cp := cloneInvoice(inv)
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *Invoice) int {
		return a.InvoiceDate.Compare(b.InvoiceDate)
	})
	return out, nil
}

func cloneInvoice(inv *Invoice) Invoice {
	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	return cp
}
