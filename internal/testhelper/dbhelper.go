// Package testhelper holds shared setup for integration tests: a warehouse
// connection (from STAGESWAP_TEST_CONN or a testcontainer), per-test
// databases, and provider payload fixtures.
package testhelper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/internal/testinfra"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartSimplePostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test warehouse connection string.
// Priority: STAGESWAP_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("STAGESWAP_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("STAGESWAP_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// CreateTestDB creates a uniquely named database and drops it when the test ends.
// It returns the connection config pointing at the new database.
func CreateTestDB(t *testing.T, connString string) *stageswap.ConnectionConfig {
	t.Helper()
	ctx := context.Background()

	name := "stageswap_test_" + uuid.NewString()[:8]

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		pool.Close()
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	pool.Close()

	t.Cleanup(func() { dropTestDB(t, connString, name) })

	cfg, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	cfg.Database = name
	return cfg
}

func dropTestDB(t *testing.T, connString, name string) {
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer pool.Close()

	_, _ = pool.Exec(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()`, name)

	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{name}.Sanitize())); err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", name, err)
	}
}

// GetTestPool opens a pool on cfg, closed when the test completes.
func GetTestPool(t *testing.T, cfg *stageswap.ConnectionConfig) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), db.BuildConnectionString(cfg))
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
