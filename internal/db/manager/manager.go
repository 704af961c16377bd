package manager

import (
	"context"
	"fmt"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

const (
	queryTryAdvisoryLock = "SELECT pg_try_advisory_lock(hashtext($1))"
	queryAdvisoryUnlock  = "SELECT pg_advisory_unlock(hashtext($1))"
	queryTableExists     = "SELECT to_regclass($1::text) IS NOT NULL"
)

// Manager runs housekeeping statements against the warehouse.
type Manager struct{}

// New creates a new Manager.
func New() *Manager {
	return &Manager{}
}

// lockKey is the text hashed into the advisory lock id.
func lockKey(table stageswap.TableRef) string {
	return "stageswap:" + db.QuoteTable(table)
}

// TryLock takes a session-level advisory lock for table without waiting.
// It returns false when another session holds it.
func (m *Manager) TryLock(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (bool, error) {
	var acquired bool
	if err := q.QueryRow(ctx, queryTryAdvisoryLock, lockKey(table)).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to take advisory lock on %s: %w", table, err)
	}
	return acquired, nil
}

// Unlock releases the advisory lock taken by TryLock on the same session.
func (m *Manager) Unlock(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) error {
	var released bool
	if err := q.QueryRow(ctx, queryAdvisoryUnlock, lockKey(table)).Scan(&released); err != nil {
		return fmt.Errorf("failed to release advisory lock on %s: %w", table, err)
	}
	if !released {
		return fmt.Errorf("advisory lock on %s was not held", table)
	}
	return nil
}

// TableExists reports whether table is visible to the session.
func (m *Manager) TableExists(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, queryTableExists, db.QuoteTable(table)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// CountRows returns SELECT COUNT(*) for table.
func (m *Manager) CountRows(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", db.QuoteTable(table))
	if err := q.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// DropTable drops table if it exists.
func (m *Manager) DropTable(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) error {
	if _, err := q.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", db.QuoteTable(table))); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
