package invoice

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PgStore implements Store on PostgreSQL via pgx.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("invoice: pgx pool is required")
	}
	return &PgStore{pool: pool}
}

func (ps *PgStore) Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, account_id, invoice_date, target_date, currency, balance
		 FROM invoices WHERE id = $1`, invoiceID)

	var inv Invoice
	if err := row.Scan(&inv.ID, &inv.AccountID, &inv.InvoiceDate, &inv.TargetDate, &inv.Currency, &inv.Balance); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	items, err := ps.loadItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

func (ps *PgStore) Save(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO invoices (id, account_id, invoice_date, target_date, currency, balance)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance`,
		inv.ID, inv.AccountID, inv.InvoiceDate, inv.TargetDate, inv.Currency, inv.Balance); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range inv.Items {
		id := it.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(
			`INSERT INTO invoice_items (id, invoice_id, subscription_id, item_type, plan_name,
			   phase_name, start_date, end_date, amount, currency)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, inv.ID, it.SubscriptionID, string(it.Type), it.PlanName,
			it.PhaseName, it.StartDate, it.EndDate, it.Amount, it.Currency)
	}
	results := tx.SendBatch(ctx, batch)
	for range inv.Items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (ps *PgStore) UnpaidForAccount(ctx context.Context, accountID uuid.UUID) ([]*Invoice, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, account_id, invoice_date, target_date, currency, balance
		 FROM invoices
		 WHERE account_id = $1 AND balance > 0
		 ORDER BY invoice_date`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.AccountID, &inv.InvoiceDate, &inv.TargetDate, &inv.Currency, &inv.Balance); err != nil {
			return nil, err
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}

func (ps *PgStore) loadItems(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, invoice_id, subscription_id, item_type, plan_name, phase_name,
		   start_date, end_date, amount, currency
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY start_date, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var itemType string
		var subID *uuid.UUID
		if err := rows.Scan(&it.ID, &it.InvoiceID, &subID, &itemType, &it.PlanName, &it.PhaseName,
			&it.StartDate, &it.EndDate, &it.Amount, &it.Currency); err != nil {
			return nil, err
		}
		it.Type = ItemType(itemType)
		if subID != nil {
			it.SubscriptionID = *subID
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
