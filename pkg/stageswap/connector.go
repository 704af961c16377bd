package stageswap

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connector is a unified interface for establishing warehouse connections.
// Different implementations handle various authentication methods
// (password, cloud IAM tokens, Cloud SQL dialer).
type Connector interface {
	// Connect establishes a connection pool to the warehouse.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}
