package entitlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PgBlockingStore implements BlockingStore on PostgreSQL via pgx.
type PgBlockingStore struct {
	pool *pgxpool.Pool
}

func NewPgBlockingStore(pool *pgxpool.Pool) *PgBlockingStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	return &PgBlockingStore{pool: pool}
}

const blockingColumns = `id, entity_id, entity_type, state_name, service,
	block_change, block_entitlement, block_billing, effective_date, created_at`

func (ps *PgBlockingStore) Current(ctx context.Context, entityID uuid.UUID, service string) (*BlockingState, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT `+blockingColumns+` FROM blocking_states
		 WHERE entity_id = $1 AND service = $2
		 ORDER BY effective_date DESC, created_at DESC
		 LIMIT 1`, entityID, service)

	state, err := scanBlockingState(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return state, nil
}

func (ps *PgBlockingStore) Save(ctx context.Context, state *BlockingState) error {
	id := state.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO blocking_states (`+blockingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, state.EntityID, string(state.Type), state.StateName, state.Service,
		state.BlockChange, state.BlockEntitlement, state.BlockBilling,
		state.EffectiveDate, state.CreatedAt)
	return err
}

func (ps *PgBlockingStore) History(ctx context.Context, entityID uuid.UUID, service string) ([]*BlockingState, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT `+blockingColumns+` FROM blocking_states
		 WHERE entity_id = $1 AND service = $2
		 ORDER BY effective_date, created_at`, entityID, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BlockingState
	for rows.Next() {
		state, err := scanBlockingState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlockingState(row rowScanner) (*BlockingState, error) {
	var s BlockingState
	var entityType string
	if err := row.Scan(
		&s.ID, &s.EntityID, &entityType, &s.StateName, &s.Service,
		&s.BlockChange, &s.BlockEntitlement, &s.BlockBilling,
		&s.EffectiveDate, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Type = BlockingStateType(entityType)
	return &s, nil
}
