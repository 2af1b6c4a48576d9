package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PgStore implements Store on PostgreSQL via pgx.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("account: pgx pool is required")
	}
	return &PgStore{pool: pool}
}

func (ps *PgStore) Get(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, external_key, name, email, currency, time_zone, created_at
		 FROM accounts WHERE id = $1`, accountID)

	var a Account
	if err := row.Scan(&a.ID, &a.ExternalKey, &a.Name, &a.Email, &a.Currency, &a.TimeZone, &a.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (ps *PgStore) Save(ctx context.Context, account *Account) error {
	id := account.ID
	if id == uuid.Nil {
		id = uuid.New()
		account.ID = id
	}
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO accounts (id, external_key, name, email, currency, time_zone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   external_key = EXCLUDED.external_key,
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   currency = EXCLUDED.currency,
		   time_zone = EXCLUDED.time_zone`,
		id, account.ExternalKey, account.Name, account.Email, account.Currency, account.TimeZone, account.CreatedAt)
	return err
}
