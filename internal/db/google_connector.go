package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// GoogleCloudSQLConnector connects through the Cloud SQL Go Connector with
// IAM database authentication.
//
// Implements io.Closer: call Close after the pool is closed to release the dialer.
type GoogleCloudSQLConnector struct {
	config *stageswap.ConnectionConfig
	logger stageswap.Logger
	dialer *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector creates a connector for config.GoogleInstance (project:region:instance).
func NewGoogleCloudSQLConnector(config *stageswap.ConnectionConfig, logger stageswap.Logger) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{config: config, logger: logger}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: create cloud sql dialer: %w", stageswap.ErrConnectionFailed, err)
	}

	dsn := fmt.Sprintf("user=%s dbname=%s sslmode=disable", c.config.Username, c.config.Database)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	instance := c.config.GoogleInstance
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, instance)
	}
	configurePool(poolConfig, c.logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err == nil {
		err = pool.Ping(ctx)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("%w: cloud sql instance %s: %w", stageswap.ErrConnectionFailed, instance, err)
	}

	c.dialer = dialer
	return pool, nil
}

// Close releases the Cloud SQL dialer.
func (c *GoogleCloudSQLConnector) Close() error {
	if c.dialer != nil {
		err := c.dialer.Close()
		c.dialer = nil
		return err
	}
	return nil
}
