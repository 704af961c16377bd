package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

type mockConnector struct {
	pool   *pgxpool.Pool
	err    error
	closed int
}

func (m *mockConnector) Connect(_ context.Context) (*pgxpool.Pool, error) {
	return m.pool, m.err
}

func (m *mockConnector) Close() error {
	m.closed++
	return nil
}

func factoryFor(c stageswap.Connector, err error) ConnectorFactory {
	return func(*stageswap.ConnectionConfig, stageswap.Logger) (stageswap.Connector, error) {
		return c, err
	}
}

func TestScopeManager_NilConfig(t *testing.T) {
	sm := NewScopeManager(factoryFor(&mockConnector{}, nil), logging.NewNullLogger())

	_, err := sm.OpenScope(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
}

func TestScopeManager_FactoryError(t *testing.T) {
	sm := NewScopeManager(factoryFor(nil, errors.New("aws region is required")), logging.NewNullLogger())

	_, err := sm.OpenScope(context.Background(), &stageswap.ConnectionConfig{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create connector")
	assert.Contains(t, err.Error(), "aws region is required")
}

func TestScopeManager_ConnectErrorClosesConnector(t *testing.T) {
	connector := &mockConnector{err: stageswap.ErrConnectionFailed}
	sm := NewScopeManager(factoryFor(connector, nil), logging.NewNullLogger())

	_, err := sm.OpenScope(context.Background(), &stageswap.ConnectionConfig{Host: "db", Port: 5432})

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrConnectionFailed))
	assert.Equal(t, 1, connector.closed)
}

func TestNewScopeManager_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewScopeManager(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewScopeManager(factoryFor(nil, nil), nil) })
}
