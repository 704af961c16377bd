package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// ConnAdapter adapts a pooled connection to stageswap.Conn so services never
// see pgx types beyond CommandTag.
//
// Thread-Safety: NOT safe for concurrent use (one connection, one run).
type ConnAdapter struct {
	conn *pgxpool.Conn
}

// NewConnAdapter wraps conn.
func NewConnAdapter(conn *pgxpool.Conn) *ConnAdapter {
	return &ConnAdapter{conn: conn}
}

func (c *ConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *ConnAdapter) QueryRow(ctx context.Context, sql string, args ...any) stageswap.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a read-committed transaction on the run's connection.
func (c *ConnAdapter) Begin(ctx context.Context) (stageswap.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

// Release returns the connection to its pool.
func (c *ConnAdapter) Release() {
	c.conn.Release()
}

type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) stageswap.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback after Commit is a no-op.
func (t *txAdapter) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

var (
	_ stageswap.Conn = (*ConnAdapter)(nil)
	_ stageswap.Tx   = (*txAdapter)(nil)
)
