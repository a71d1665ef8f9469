// Package postgres implements core.Store on PostgreSQL through pgx.
//
// Counters are advanced with a single upsert and product balances are read
// with SELECT ... FOR UPDATE, so concurrent transactions serialize on the rows
// they touch and never lose an increment.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"commercial-docs/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements core.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &core.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Config() core.ConfigRepository       { return configRepo{t.tx} }
func (t *pgTx) Numbering() core.NumberingRepository { return numberingRepo{t.tx} }
func (t *pgTx) Products() core.ProductRepository    { return productRepo{t.tx} }
func (t *pgTx) Stock() core.StockRepository         { return stockRepo{t.tx} }
func (t *pgTx) Documents() core.DocumentRepository  { return documentRepo{t.tx} }

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

// wrap maps driver errors onto the core taxonomy: missing rows wrap
// core.ErrNotFound, unique violations wrap core.ErrDuplicate inside a
// *core.PersistenceError, and anything else is a *core.PersistenceError.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &core.PersistenceError{Op: op, Err: fmt.Errorf("%w: %s", core.ErrDuplicate, pgErr.ConstraintName)}
	}
	return &core.PersistenceError{Op: op, Err: err}
}
