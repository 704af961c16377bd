package services

import (
	"context"
	"fmt"
	"io"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// ConnectorFactory builds a warehouse connector for a resolved connection config.
type ConnectorFactory func(*stageswap.ConnectionConfig, stageswap.Logger) (stageswap.Connector, error)

// ScopeManager opens the single-connection scope each run works in.
//
// ScopeManager is safe for concurrent use as long as the injected
// connectorFactory and logger are.
type ScopeManager struct {
	connectorFactory ConnectorFactory
	logger           stageswap.Logger
}

// NewScopeManager creates a ScopeManager.
//
// Panics if any dependency is nil.
func NewScopeManager(connectorFactory ConnectorFactory, logger stageswap.Logger) *ScopeManager {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ScopeManager{connectorFactory: connectorFactory, logger: logger}
}

// OpenScope connects, acquires exactly one connection, and returns a Scope
// whose Close releases the connection, closes the pool, and closes the
// connector when it holds resources of its own (Cloud SQL dialer).
func (sm *ScopeManager) OpenScope(ctx context.Context, connConfig *stageswap.ConnectionConfig) (*stageswap.Scope, error) {
	if connConfig == nil {
		return nil, fmt.Errorf("connection config is required: %w", stageswap.ErrInvalidConfig)
	}

	connector, err := sm.connectorFactory(connConfig, sm.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	closeConnector := func() {
		if c, ok := connector.(io.Closer); ok {
			if err := c.Close(); err != nil {
				sm.logger.Verbose("Connector close failed: %v", err)
			}
		}
	}

	sm.logger.Verbose("Connecting to %s:%d/%s", connConfig.Host, connConfig.Port, connConfig.Database)
	pool, err := connector.Connect(ctx)
	if err != nil {
		closeConnector()
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		closeConnector()
		return nil, fmt.Errorf("failed to acquire connection: %w: %w", stageswap.ErrConnectionFailed, err)
	}

	adapter := db.NewConnAdapter(conn)
	return stageswap.NewScope(adapter, func() {
		adapter.Release()
		pool.Close()
		closeConnector()
		sm.logger.Verbose("Connection released")
	}), nil
}

var _ stageswap.ScopeOpener = (*ScopeManager)(nil)
