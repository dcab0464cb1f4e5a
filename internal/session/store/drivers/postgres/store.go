// Package postgres is the shared RefreshTokenStore for multi-replica
// deployments, built on pgx connection pools.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tune the pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns int32
	MinConns int32
}

type Store struct {
	pool *pgxpool.Pool
	q    *queries
}

var _ store.Store = (*Store)(nil)

// NewStore builds a pool for dsn and checks it can hand out a connection.
func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	s := NewStoreFromPool(pool)
	if err := s.ping(ctx, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreFromPool wraps an existing pool. Close closes the pool.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: newQueries(pool)}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx, 3*time.Second)
}

// ping acquires a connection within timeout.
func (s *Store) ping(parent context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}

// WithTx runs fn in a READ COMMITTED transaction. The conditional UPDATE in
// MarkRefreshTokenUsed waits on the row lock of a concurrent winner and then
// matches nothing, so losers still see ErrAlreadyUsed.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: s.q} }

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

const pgUniqueViolation = "23505"

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return store.ErrAlreadyExists
	}
	return err
}
