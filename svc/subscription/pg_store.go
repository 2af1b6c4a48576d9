package subscription

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// PgStore implements Store on PostgreSQL via pgx.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PgStore{pool: pool}
}

const eventColumns = `id, subscription_id, event_type, effective_date, requested_date,
	created_date, active_version, product_name, billing_period, price_list, phase_type`

func (ps *PgStore) GetBundle(ctx context.Context, bundleID uuid.UUID) (*Bundle, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, external_key, account_id, created_at FROM bundles WHERE id = $1`, bundleID)

	var b Bundle
	if err := row.Scan(&b.ID, &b.ExternalKey, &b.AccountID, &b.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrBundleNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (ps *PgStore) GetBundlesForAccount(ctx context.Context, accountID uuid.UUID) ([]*Bundle, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, external_key, account_id, created_at FROM bundles
		 WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Bundle
	for rows.Next() {
		var b Bundle
		if err := rows.Scan(&b.ID, &b.ExternalKey, &b.AccountID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (ps *PgStore) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error) {
	return getSubscription(ctx, ps.pool, subscriptionID)
}

func (ps *PgStore) GetSubscriptionsForBundle(ctx context.Context, bundleID uuid.UUID) ([]*Subscription, error) {
	return getSubscriptionsForBundle(ctx, ps.pool, bundleID)
}

func (ps *PgStore) CreateBundle(ctx context.Context, bundle *Bundle) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO bundles (id, external_key, account_id, created_at) VALUES ($1, $2, $3, $4)`,
		bundle.ID, bundle.ExternalKey, bundle.AccountID, bundle.CreatedAt)
	return err
}

func (ps *PgStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO subscriptions (id, bundle_id, category, active_version) VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.BundleID, string(sub.Category), sub.ActiveVersion); err != nil {
		return err
	}
	if err := insertEvents(ctx, tx, sub.Events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (ps *PgStore) AppendEvents(ctx context.Context, subscriptionID uuid.UUID, events ...Event) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, subscriptionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrSubscriptionNotFound
	}

	for i := range events {
		events[i].SubscriptionID = subscriptionID
	}
	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReplaceEvents is the commit side of repair. The expected view token is
// recomputed from the rows the transaction actually sees, so a concurrent
// commit between the caller's read and this write surfaces as
// ErrConcurrentRepair instead of silently clobbering it.
func (ps *PgStore) ReplaceEvents(ctx context.Context, bundleID uuid.UUID, expectedViewID string, updates []VersionedEvents) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT 1 FROM bundles WHERE id = $1 FOR UPDATE`, bundleID); err != nil {
		return err
	}

	subs, err := getSubscriptionsForBundle(ctx, tx, bundleID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return ErrBundleNotFound
	}
	if ComputeViewID(subs) != expectedViewID {
		return ErrConcurrentRepair
	}

	for _, upd := range updates {
		if _, err := tx.Exec(ctx,
			`DELETE FROM subscription_events WHERE subscription_id = $1`, upd.SubscriptionID); err != nil {
			return err
		}
		if err := insertEvents(ctx, tx, upd.Events); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE subscriptions SET active_version = $2 WHERE id = $1`,
			upd.SubscriptionID, upd.NewVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSubscriptionNotFound
		}
	}

	return tx.Commit(ctx)
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getSubscription(ctx context.Context, q querier, subscriptionID uuid.UUID) (*Subscription, error) {
	row := q.QueryRow(ctx,
		`SELECT id, bundle_id, category, active_version FROM subscriptions WHERE id = $1`, subscriptionID)

	var sub Subscription
	var category string
	if err := row.Scan(&sub.ID, &sub.BundleID, &category, &sub.ActiveVersion); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.Category = catalog.ProductCategory(category)

	events, err := loadEvents(ctx, q, `WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.Events = events
	return &sub, nil
}

func getSubscriptionsForBundle(ctx context.Context, q querier, bundleID uuid.UUID) ([]*Subscription, error) {
	rows, err := q.Query(ctx,
		`SELECT id, bundle_id, category, active_version FROM subscriptions
		 WHERE bundle_id = $1 ORDER BY id`, bundleID)
	if err != nil {
		return nil, err
	}

	var out []*Subscription
	for rows.Next() {
		var sub Subscription
		var category string
		if err := rows.Scan(&sub.ID, &sub.BundleID, &category, &sub.ActiveVersion); err != nil {
			rows.Close()
			return nil, err
		}
		sub.Category = catalog.ProductCategory(category)
		out = append(out, &sub)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sub := range out {
		events, err := loadEvents(ctx, q, `WHERE subscription_id = $1`, sub.ID)
		if err != nil {
			return nil, err
		}
		sub.Events = events
	}
	return out, nil
}

func loadEvents(ctx context.Context, q querier, where string, args ...any) ([]Event, error) {
	rows, err := q.Query(ctx,
		`SELECT `+eventColumns+` FROM subscription_events `+where+` ORDER BY effective_date, created_date, id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var eventType, period, phase string
		if err := rows.Scan(
			&ev.ID, &ev.SubscriptionID, &eventType, &ev.EffectiveDate, &ev.RequestedDate,
			&ev.CreatedDate, &ev.ActiveVersion,
			&ev.Spec.ProductName, &period, &ev.Spec.PriceList, &phase,
		); err != nil {
			return nil, err
		}
		ev.Type = EventType(eventType)
		ev.Spec.BillingPeriod = catalog.BillingPeriod(period)
		ev.Spec.PhaseType = catalog.PhaseType(phase)
		ev.FromDisk = true
		out = append(out, ev)
	}
	return out, rows.Err()
}

func insertEvents(ctx context.Context, tx pgx.Tx, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO subscription_events (`+eventColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			ev.ID, ev.SubscriptionID, string(ev.Type), ev.EffectiveDate, ev.RequestedDate,
			ev.CreatedDate, ev.ActiveVersion,
			ev.Spec.ProductName, string(ev.Spec.BillingPeriod), ev.Spec.PriceList, string(ev.Spec.PhaseType))
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
