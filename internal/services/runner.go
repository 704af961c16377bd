package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/stageswap/internal/archive"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Pipeline names recorded on each Run.
const (
	PipelineStockPrice     = "stock_price"
	PipelineSessionSummary = "session_summary"
)

// PipelineService implements stageswap.Pipeline.
//
// Each Run* call is one sequential run: its own run id, its own connection,
// and an advisory lock on the target held for the duration.
//
// Thread-Safety: safe for concurrent calls on different targets. Concurrent
// calls on the same target fail fast on the advisory lock.
type PipelineService struct {
	scopes    stageswap.ScopeOpener
	store     storeManager
	logger    stageswap.Logger
	extractor stageswap.PriceExtractor
	archiver  stageswap.Archiver
	swap      *SwapLoader
	refresh   *FullRefreshLoader
}

// Option configures optional PipelineService collaborators.
type Option func(*PipelineService)

// WithExtractor sets the price extractor used by RunStockPrice.
func WithExtractor(e stageswap.PriceExtractor) Option {
	return func(s *PipelineService) { s.extractor = e }
}

// WithArchiver lands each extracted payload before it is loaded.
// Without it, payloads are not archived.
func WithArchiver(a stageswap.Archiver) Option {
	return func(s *PipelineService) {
		if a != nil {
			s.archiver = a
		}
	}
}

// NewPipelineService creates a PipelineService.
//
// Panics if scopes, store or logger is nil. A missing extractor is a
// configuration error reported by RunStockPrice, since session-summary runs
// never need one.
func NewPipelineService(scopes stageswap.ScopeOpener, store storeManager, logger stageswap.Logger, opts ...Option) *PipelineService {
	if scopes == nil {
		panic("scopes cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	validator := NewValidator(logger)
	s := &PipelineService{
		scopes:   scopes,
		store:    store,
		logger:   logger,
		archiver: archive.NopArchiver{},
		swap:     NewSwapLoader(validator, store, logger),
		refresh:  NewFullRefreshLoader(validator, store, logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunStockPrice extracts the configured symbol and fully refreshes the price table.
func (s *PipelineService) RunStockPrice(ctx context.Context, config stageswap.StockPriceConfig) (stageswap.LoadResult, error) {
	if err := config.Validate(); err != nil {
		return stageswap.LoadResult{}, err
	}
	if s.extractor == nil {
		return stageswap.LoadResult{}, fmt.Errorf("no price extractor configured: %w", stageswap.ErrInvalidConfig)
	}

	run := stageswap.NewRun(uuid.New(), PipelineStockPrice)
	s.logger.Verbose("Run %s: %s %s into %s", run.ID, run.Pipeline, config.Symbol, config.Target)

	window, err := s.extractor.FetchDaily(ctx, config.Symbol, config.LookbackDays)
	if err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}
	s.logger.Info("✓ Extracted %d daily records for %s", len(window.Records), window.Symbol)

	if !config.DryRun {
		if err := s.archiver.Archive(ctx, run.ID, window); err != nil {
			return stageswap.LoadResult{}, s.abort(run, err)
		}
	}
	if err := run.Advance(stageswap.StateExtracted); err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}

	conn, release, err := s.openLockedScope(ctx, config.Connection, config.Target)
	if err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}
	defer release()

	result, err := s.refresh.Load(ctx, run, conn, config, window)
	if err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}
	return s.finish(run, result), nil
}

// RunSessionSummary materializes the configured select and swaps it into the target.
// Extraction and transformation happen store-side inside the select, so the
// run moves straight to Extracted.
func (s *PipelineService) RunSessionSummary(ctx context.Context, config stageswap.SessionSummaryConfig) (stageswap.LoadResult, error) {
	if err := config.Validate(); err != nil {
		return stageswap.LoadResult{}, err
	}

	run := stageswap.NewRun(uuid.New(), PipelineSessionSummary)
	s.logger.Verbose("Run %s: %s into %s", run.ID, run.Pipeline, config.Target)

	if err := run.Advance(stageswap.StateExtracted); err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}

	conn, release, err := s.openLockedScope(ctx, config.Connection, config.Target)
	if err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}
	defer release()

	result, err := s.swap.Load(ctx, run, conn, config)
	if err != nil {
		return stageswap.LoadResult{}, s.abort(run, err)
	}
	return s.finish(run, result), nil
}

// openLockedScope opens the run's scope and takes the target's advisory lock
// on it. release unlocks and closes the scope; it must be called exactly once.
func (s *PipelineService) openLockedScope(ctx context.Context, connConfig *stageswap.ConnectionConfig, target stageswap.TableRef) (stageswap.Conn, func(), error) {
	scope, err := s.scopes.OpenScope(ctx, connConfig)
	if err != nil {
		return nil, nil, err
	}

	conn := scope.Conn()
	acquired, err := s.store.TryLock(ctx, conn, target)
	if err != nil {
		scope.Close()
		return nil, nil, stageswap.StoreError("lock", err)
	}
	if !acquired {
		scope.Close()
		return nil, nil, stageswap.StoreError("lock", fmt.Errorf("%s is locked by another run", target))
	}
	s.logger.Verbose("Locked %s", target)

	release := func() {
		if err := s.store.Unlock(context.WithoutCancel(ctx), conn, target); err != nil {
			s.logger.Verbose("Unlock %s: %v", target, err)
		}
		scope.Close()
	}
	return conn, release, nil
}

// abort records err on run and returns it annotated with the run id.
func (s *PipelineService) abort(run *stageswap.Run, err error) error {
	from := run.State()
	run.Abort(err)
	s.logger.Error("Run %s aborted after %s: %v", run.ID, from, err)
	return fmt.Errorf("run %s: %w", run.ID, err)
}

// finish ends a dry run as Aborted with no error; committed runs are already terminal.
func (s *PipelineService) finish(run *stageswap.Run, result stageswap.LoadResult) stageswap.LoadResult {
	if result.DryRun {
		run.Abort(nil)
		s.logger.Verbose("Run %s: dry run finished without commit", run.ID)
		return result
	}
	s.logger.Verbose("Run %s committed in %s", run.ID, time.Since(run.StartedAt).Round(time.Millisecond))
	return result
}

var _ stageswap.Pipeline = (*PipelineService)(nil)
