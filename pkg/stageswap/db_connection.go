package stageswap

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by a run's connection and its transactions.
// It decouples pipeline code from pgx connection and transaction types.
type Querier interface {
	// Exec executes a statement without returning rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Always returns a non-nil Row. Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Row represents a single row returned by QueryRow.
type Row interface {
	// Scan reads the values from the row into dest values.
	Scan(dest ...any) error
}

// Tx is an open transaction on the run's connection.
type Tx interface {
	Querier

	// Commit makes the transaction's changes visible.
	Commit(ctx context.Context) error

	// Rollback discards the transaction's changes.
	// Calling Rollback after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Conn is the single connection a run holds for its whole lifetime.
//
// Thread-Safety: NOT safe for concurrent use.
type Conn interface {
	Querier

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)
}
