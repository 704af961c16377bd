package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

type fakeTokenProvider struct {
	calls int
	err   error
}

func (f *fakeTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	f.calls++
	return "", time.Time{}, f.err
}

func (f *fakeTokenProvider) String() string { return "fake" }

func TestNewConnector_Dispatch(t *testing.T) {
	logger := logging.NewNullLogger()

	conn, err := NewConnector(&stageswap.ConnectionConfig{Host: "localhost", Port: 5432}, logger)
	require.NoError(t, err)
	assert.IsType(t, &StandardConnector{}, conn)

	conn, err = NewConnector(&stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethodGoogleIAM, GoogleInstance: "p:r:i", Username: "sa@p.iam"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GoogleCloudSQLConnector{}, conn)

	conn, err = NewConnector(&stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethodAWSIAM, Host: "rds", Port: 5432, AWSRegion: "us-east-1", Username: "iam_user"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &TokenBasedConnector{}, conn)
}

func TestNewConnector_InvalidCloudConfig(t *testing.T) {
	logger := logging.NewNullLogger()

	tests := []struct {
		name   string
		config *stageswap.ConnectionConfig
	}{
		{"aws without region", &stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethodAWSIAM, Username: "u"}},
		{"aws without user", &stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethodAWSIAM, AWSRegion: "us-east-1"}},
		{"google without instance", &stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethodGoogleIAM, Username: "u"}},
		{"unknown method", &stageswap.ConnectionConfig{AuthMethod: stageswap.AuthMethod(99)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnector(tt.config, logger)
			require.Error(t, err)
			assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNewStandardConnector_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewStandardConnector(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewStandardConnector(&stageswap.ConnectionConfig{}, nil) })
}

func TestTokenBasedConnector_TokenFailureIsNotRetried(t *testing.T) {
	provider := &fakeTokenProvider{err: errors.New("credentials expired")}
	connector := NewTokenBasedConnector(&stageswap.ConnectionConfig{Host: "localhost", Port: 5432}, provider, logging.NewNullLogger())

	_, err := connector.Connect(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrConnectionFailed))
	assert.Contains(t, err.Error(), "credentials expired")
	assert.Equal(t, 1, provider.calls)
}

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name         string
		errMsg       string
		wantContains string
	}{
		{"refused", "dial tcp 127.0.0.1:5432: connection refused", "connection refused to db:5432"},
		{"dns", "dial tcp: lookup db: no such host", `cannot resolve host "db"`},
		{"password", "FATAL: password authentication failed for user \"x\"", `password authentication failed for database "dev"`},
		{"missing db", "FATAL: database \"dev\" does not exist", `database "dev" does not exist`},
		{"timeout", "dial tcp: i/o timeout", "connection timed out to db:5432"},
		{"other", "something odd", "failed to connect to database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := errors.New(tt.errMsg)
			err := wrapConnectionError(cause, "db", 5432, "dev")
			assert.True(t, strings.Contains(err.Error(), tt.wantContains), "got %q", err.Error())
			assert.True(t, errors.Is(err, cause))
		})
	}
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"RAW"."STOCK_PRICE"`, QuoteTable(stageswap.TableRef{Database: "DEV", Schema: "RAW", Name: "STOCK_PRICE"}))
	assert.Equal(t, `"stageswap_stage_x"`, QuoteTable(stageswap.TableRef{Name: "stageswap_stage_x"}))
	assert.Equal(t, `"t_date", "symbol"`, QuoteColumns([]string{"t_date", "symbol"}))
}
