// Package postgres implements domain.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/mercato/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// runs unchanged inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store is a PostgreSQL-backed domain.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens and verifies a pool for databaseURL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func (s *Store) Users() domain.UserStore       { return &UserRepo{q: s.pool} }
func (s *Store) Products() domain.ProductStore { return &ProductRepo{q: s.pool} }
func (s *Store) Carts() domain.CartStore       { return &CartRepo{q: s.pool} }
func (s *Store) Orders() domain.OrderStore     { return &OrderRepo{q: s.pool} }

// Ping implements domain.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx implements domain.Store. The transaction runs at READ COMMITTED.
// Stock safety comes from the conditional decrement in DebitStock, and cart
// reads take a row lock so a cart is turned into at most one order.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Internal(err, "postgres.WithTx", "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(txStores{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return mapError(err, "postgres.WithTx")
	}
	return nil
}

type txStores struct {
	q querier
}

func (t txStores) Users() domain.UserStore       { return &UserRepo{q: t.q} }
func (t txStores) Products() domain.ProductStore { return &ProductRepo{q: t.q} }
func (t txStores) Carts() domain.CartStore       { return &CartRepo{q: t.q, lock: true} }
func (t txStores) Orders() domain.OrderStore     { return &OrderRepo{q: t.q} }

// Postgres error codes the store translates.
const (
	pgUniqueViolation       = "23505"
	pgInvalidTextRepr       = "22P02"
	pgForeignKeyViolation   = "23503"
	pgInvalidRegex          = "2201B"
	paymentRefConstraintKey = "orders_payment_ref_key"
)

// mapError translates driver errors into domain errors. Bad identifiers and
// duplicate keys are client errors; everything else is internal.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == paymentRefConstraintKey {
				return domain.ErrDuplicatePaymentRef
			}
			return domain.WrapError(err, domain.EINVALID, op, "Duplicate value for "+pgErr.ConstraintName)
		case pgInvalidTextRepr:
			return domain.WrapError(err, domain.EINVALID, op, "Invalid id")
		case pgForeignKeyViolation:
			return domain.WrapError(err, domain.EINVALID, op, "Referenced record does not exist")
		case pgInvalidRegex:
			return domain.WrapError(err, domain.EINVALID, op, "Invalid search pattern")
		}
	}

	return domain.Internal(err, op, "database error")
}

// notFound maps pgx.ErrNoRows to the given domain error.
func notFound(err error, op string, missing error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return missing
	}
	return mapError(err, op)
}
