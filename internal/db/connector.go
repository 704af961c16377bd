package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/stageswap/internal/retry"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Pool sizing for a run. A run holds exactly one connection; the spare
// slot lets a ping or a second scope coexist without blocking.
const (
	DefaultMaxConns        = 2
	DefaultMinConns        = 0
	DefaultMaxConnIdleTime = 5 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger stageswap.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
}

func newConnectExecutor(logger stageswap.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(stageswap.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(stageswap.DefaultRetryInitialDelay),
		retry.WithMaxDelay(stageswap.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(retry.NewConnectErrorClassifier(), strategy, logger)
}

// openPool parses connStr, opens a pool, and pings it once.
func openPool(ctx context.Context, connStr string, config *stageswap.ConnectionConfig, logger stageswap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	return pool, nil
}

// StandardConnector connects with username/password and retries transient
// connect failures.
type StandardConnector struct {
	config   *stageswap.ConnectionConfig
	logger   stageswap.Logger
	executor *retry.Executor
}

// NewStandardConnector creates a StandardConnector.
// Panics if config or logger is nil.
func NewStandardConnector(config *stageswap.ConnectionConfig, logger stageswap.Logger) *StandardConnector {
	if config == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &StandardConnector{
		config:   config,
		logger:   logger,
		executor: newConnectExecutor(logger),
	}
}

// Connect establishes a connection pool.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)

	var pool *pgxpool.Pool
	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		pool, err = openPool(ctx, connStr, c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stageswap.ErrConnectionFailed, err)
	}
	return pool, nil
}

// NewConnector creates the Connector matching config.AuthMethod.
func NewConnector(config *stageswap.ConnectionConfig, logger stageswap.Logger) (stageswap.Connector, error) {
	switch config.AuthMethod {
	case stageswap.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case stageswap.AuthMethodAWSIAM:
		provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", config.Host, config.Port), config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", stageswap.ErrInvalidConfig, err)
		}
		return NewTokenBasedConnector(config, provider, logger), nil
	case stageswap.AuthMethodAzureEntraID:
		provider, err := newAzureProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenBasedConnector(config, provider, logger), nil
	case stageswap.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" || config.Username == "" {
			return nil, fmt.Errorf("google cloud sql iam auth requires google_instance and username: %w", stageswap.ErrInvalidConfig)
		}
		return NewGoogleCloudSQLConnector(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, stageswap.ErrInvalidConfig)
	}
}

func newAzureProvider(config *stageswap.ConnectionConfig) (TokenProvider, error) {
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		return NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
	}
	return NewAzureDefaultCredentialProvider()
}

// wrapConnectionError adds the likely cause to raw pgx connect errors.
func wrapConnectionError(err error, host string, port int, database string) error {
	msg := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused"):
		return fmt.Errorf("connection refused to %s (is the warehouse running? try pg_isready -h %s -p %d): %w", addr, host, port, err)
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "no host"):
		return fmt.Errorf("cannot resolve host %q: %w", host, err)
	case strings.Contains(msg, "password authentication failed"):
		return fmt.Errorf("password authentication failed for database %q (check PGPASSWORD or the connection string): %w", database, err)
	case strings.Contains(msg, "does not exist"):
		return fmt.Errorf("database %q does not exist: %w", database, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return fmt.Errorf("connection timed out to %s: %w", addr, err)
	case strings.Contains(msg, "too many connections"):
		return fmt.Errorf("too many connections to database %q: %w", database, err)
	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
