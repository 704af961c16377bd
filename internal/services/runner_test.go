package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

type runnerFixture struct {
	db        *fakeDB
	scopes    *mockScopeOpener
	store     *mockStore
	extractor *mockExtractor
	archiver  *mockArchiver
	service   *PipelineService
}

func newRunnerFixture(db *fakeDB) *runnerFixture {
	f := &runnerFixture{
		db:        db,
		scopes:    &mockScopeOpener{db: db},
		store:     newMockStore(),
		extractor: &mockExtractor{window: priceWindow(3)},
		archiver:  &mockArchiver{},
	}
	f.store.rowCount = 3
	f.service = NewPipelineService(f.scopes, f.store, logging.NewNullLogger(),
		WithExtractor(f.extractor), WithArchiver(f.archiver))
	return f
}

func TestRunStockPrice_Success(t *testing.T) {
	f := newRunnerFixture(validPriceDB(3))

	result, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.NoError(t, err)
	assert.Equal(t, stageswap.LoadResult{InsertedRows: 3, Table: "RAW.STOCK_PRICE"}, result)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 90, f.extractor.limit)
	assert.Equal(t, 1, f.archiver.calls)
	assert.NotEqual(t, uuid.Nil, f.archiver.runID)
	assert.Equal(t, 1, f.scopes.opened)
	assert.Equal(t, 1, f.scopes.closed)
	assert.Equal(t, 1, f.store.unlocks)
}

func TestRunStockPrice_SourceUnavailableAbortsBeforeStore(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	f.extractor.err = stageswap.NewSourceUnavailable("Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day.")

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "rate limit")
	assert.Contains(t, err.Error(), "run ")
	assert.Equal(t, stageswap.ExitSourceUnavailable, stageswap.ExitCodeForError(err))
	assert.Zero(t, f.scopes.opened)
	assert.Zero(t, f.archiver.calls)
}

func TestRunStockPrice_UniquenessViolation(t *testing.T) {
	db := newFakeDB()
	db.rows[pkQueryMarker] = fakeRow{values: []any{"(2024-03-28,IBM)", int64(2)}}
	f := newRunnerFixture(db)

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitUniquenessViolation, stageswap.ExitCodeForError(err))
	assert.Equal(t, 0, db.commits)
	assert.Equal(t, 1, f.scopes.closed, "scope released on failure")
	assert.Equal(t, 1, f.store.unlocks)
}

func TestRunStockPrice_LockedByAnotherRun(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	f.store.lockAcquired = false

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrStoreOperationFailed))
	assert.Contains(t, err.Error(), "locked by another run")
	assert.Equal(t, 1, f.scopes.closed)
	assert.Zero(t, f.store.unlocks)
	assert.Empty(t, f.db.execs)
}

func TestRunStockPrice_LockQueryFails(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	f.store.lockErr = errors.New("permission denied")

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrStoreOperationFailed))
	assert.Equal(t, 1, f.scopes.closed)
}

func TestRunStockPrice_ConnectFailure(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	f.scopes.err = fmt.Errorf("%w: dial tcp: connection refused", stageswap.ErrConnectionFailed)

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitConnectionError, stageswap.ExitCodeForError(err))
}

func TestRunStockPrice_InvalidConfig(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	cfg := stockPriceConfig()
	cfg.Symbol = ""
	cfg.LookbackDays = 0

	_, err := f.service.RunStockPrice(context.Background(), cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "symbol is required")
	assert.Contains(t, err.Error(), "lookback days")
	assert.Zero(t, f.extractor.calls)
}

func TestRunStockPrice_NoExtractor(t *testing.T) {
	service := NewPipelineService(&mockScopeOpener{db: newFakeDB()}, newMockStore(), logging.NewNullLogger())

	_, err := service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
}

func TestRunStockPrice_ArchiveFailureAborts(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	f.archiver.err = stageswap.StoreError("archive", errors.New("bucket not found"))

	_, err := f.service.RunStockPrice(context.Background(), stockPriceConfig())

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrStoreOperationFailed))
	assert.Zero(t, f.scopes.opened)
}

func TestRunStockPrice_DryRunSkipsArchive(t *testing.T) {
	f := newRunnerFixture(validPriceDB(3))
	cfg := stockPriceConfig()
	cfg.DryRun = true

	result, err := f.service.RunStockPrice(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Zero(t, f.archiver.calls)
	assert.Equal(t, 0, f.db.commits)
}

func TestRunSessionSummary_Success(t *testing.T) {
	db := newFakeDB()
	db.rows[dupQueryMarker] = fakeRow{values: []any{int64(12), int64(12)}}
	f := newRunnerFixture(db)

	result, err := f.service.RunSessionSummary(context.Background(), sessionSummaryConfig())

	require.NoError(t, err)
	assert.Equal(t, int64(12), result.InsertedRows)
	assert.Equal(t, "analytics.session_summary", result.Table)
	assert.Zero(t, f.extractor.calls, "session summary runs never call the provider")
	assert.Equal(t, 1, f.scopes.closed)
	assert.Equal(t, 1, f.store.unlocks)
}

func TestRunSessionSummary_DuplicateRows(t *testing.T) {
	db := newFakeDB()
	db.rows[dupQueryMarker] = fakeRow{values: []any{int64(12), int64(11)}}
	f := newRunnerFixture(db)

	_, err := f.service.RunSessionSummary(context.Background(), sessionSummaryConfig())

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitDuplicateRows, stageswap.ExitCodeForError(err))
	assert.False(t, db.executed("RENAME"))
}

func TestRunSessionSummary_InvalidConfig(t *testing.T) {
	f := newRunnerFixture(newFakeDB())
	cfg := sessionSummaryConfig()
	cfg.Target.Name = "session-summary"

	_, err := f.service.RunSessionSummary(context.Background(), cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
	assert.Zero(t, f.scopes.opened)
}

func TestNewPipelineService_PanicsOnNilDependencies(t *testing.T) {
	logger := logging.NewNullLogger()
	scopes := &mockScopeOpener{db: newFakeDB()}
	assert.Panics(t, func() { NewPipelineService(nil, newMockStore(), logger) })
	assert.Panics(t, func() { NewPipelineService(scopes, nil, logger) })
	assert.Panics(t, func() { NewPipelineService(scopes, newMockStore(), nil) })
}
