package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/stageswap/internal/retry"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// TokenProvider acquires a short-lived cloud token used as the PostgreSQL password.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. Must not include secrets.
	String() string
}

// tokenExpiryWarning is how close to expiry a freshly issued token must be
// before a warning is logged.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector connects with a token from a TokenProvider (AWS IAM, Azure Entra ID).
// A fresh token is requested for every connect attempt.
type TokenBasedConnector struct {
	config   *stageswap.ConnectionConfig
	provider TokenProvider
	logger   stageswap.Logger
	executor *retry.Executor
}

// NewTokenBasedConnector creates a connector that authenticates with provider.
func NewTokenBasedConnector(config *stageswap.ConnectionConfig, provider TokenProvider, logger stageswap.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:   config,
		provider: provider,
		logger:   logger,
		executor: newConnectExecutor(logger),
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.provider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire token from %s: %w", c.provider, err)
		}
		if left := time.Until(expiresOn); left < tokenExpiryWarning {
			c.logger.Info("Warning: %s token expires in %v", c.provider, left.Round(time.Second))
		}

		withToken := *c.config
		withToken.Password = token

		pool, err = openPool(ctx, BuildConnectionString(&withToken), c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stageswap.ErrConnectionFailed, err)
	}
	return pool, nil
}
