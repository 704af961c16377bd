package services

import (
	"context"
	"fmt"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// storeManager is the housekeeping surface loaders and the runner need.
// Satisfied by *manager.Manager.
type storeManager interface {
	TryLock(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (bool, error)
	Unlock(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) error
	TableExists(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (bool, error)
	CountRows(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) (int64, error)
	DropTable(ctx context.Context, q stageswap.Querier, table stageswap.TableRef) error
}

// SwapLoader materializes a select into a scratch table, validates it, and
// swaps it with the target by renaming both inside one transaction.
//
// Thread-Safety: NOT safe for concurrent Load calls on the same connection.
type SwapLoader struct {
	validator *Validator
	store     storeManager
	logger    stageswap.Logger
}

// NewSwapLoader creates a SwapLoader. Panics if any dependency is nil.
func NewSwapLoader(validator *Validator, store storeManager, logger stageswap.Logger) *SwapLoader {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SwapLoader{validator: validator, store: store, logger: logger}
}

// Load stages, validates, and (unless config.DryRun) swaps. It advances run
// through Staged, Validated and Committed; the caller aborts run on error.
//
// The scratch table is dropped before returning on every path. After a swap
// the scratch name holds the previous target contents, so the drop discards them.
func (l *SwapLoader) Load(ctx context.Context, run *stageswap.Run, conn stageswap.Conn, config stageswap.SessionSummaryConfig) (stageswap.LoadResult, error) {
	scratch := config.Scratch()
	defer l.dropScratch(ctx, conn, scratch)

	if err := l.stage(ctx, conn, config, scratch); err != nil {
		return stageswap.LoadResult{}, err
	}
	if err := run.Advance(stageswap.StateStaged); err != nil {
		return stageswap.LoadResult{}, err
	}

	report, err := l.validator.Validate(ctx, conn, scratch, config.Validation)
	if err != nil {
		return stageswap.LoadResult{}, err
	}
	if err := run.Advance(stageswap.StateValidated); err != nil {
		return stageswap.LoadResult{}, err
	}

	if config.DryRun {
		l.logger.Info("✓ Dry run: %d rows validated in %s, target %s untouched", report.TotalRows, scratch, config.Target)
		return stageswap.LoadResult{Table: config.Target.String(), DryRun: true, Report: &report}, nil
	}

	if err := l.swap(ctx, conn, run, config.Target, scratch); err != nil {
		return stageswap.LoadResult{}, err
	}
	if err := run.Advance(stageswap.StateCommitted); err != nil {
		return stageswap.LoadResult{}, err
	}

	l.logger.Info("✓ Swapped %d rows into %s", report.TotalRows, config.Target)
	return stageswap.LoadResult{InsertedRows: report.TotalRows, Table: config.Target.String()}, nil
}

// stage replaces the scratch table with the select result in one transaction.
func (l *SwapLoader) stage(ctx context.Context, conn stageswap.Conn, config stageswap.SessionSummaryConfig, scratch stageswap.TableRef) error {
	statements := []statement{
		{"create schema", fmt.Sprintf(sqlCreateSchema, db.QuoteIdent(scratch.Schema))},
		{"drop scratch", fmt.Sprintf(sqlDropTable, db.QuoteTable(scratch))},
		{"create scratch", fmt.Sprintf(sqlCreateScratchAs, db.QuoteTable(scratch), config.SelectSQL)},
	}

	l.logger.Verbose("Staging %s", scratch)
	err := inTx(ctx, conn, func(tx stageswap.Tx) error {
		return execAll(ctx, tx, statements)
	})
	if err != nil {
		return err
	}

	l.logger.Verbose("Staged %s", scratch)
	return nil
}

// swap exchanges target and scratch by name. Readers blocked on the
// exclusive lock resume against the new table.
func (l *SwapLoader) swap(ctx context.Context, conn stageswap.Conn, run *stageswap.Run, target, scratch stageswap.TableRef) error {
	exists, err := l.store.TableExists(ctx, conn, target)
	if err != nil {
		return stageswap.StoreError("check target", err)
	}
	if !exists {
		l.logger.Verbose("Target %s does not exist, creating it from %s", target, scratch)
		if _, err := conn.Exec(ctx, fmt.Sprintf(sqlEnsureTargetLike, db.QuoteTable(target), db.QuoteTable(scratch))); err != nil {
			return stageswap.StoreError("ensure target", err)
		}
	}

	hold := stageswap.TableRef{Database: target.Database, Schema: target.Schema, Name: holdName(run)}
	statements := []statement{
		{"lock target", fmt.Sprintf(sqlLockExclusive, db.QuoteTable(target))},
		{"rename target", fmt.Sprintf(sqlRename, db.QuoteTable(target), db.QuoteIdent(hold.Name))},
		{"rename scratch", fmt.Sprintf(sqlRename, db.QuoteTable(scratch), db.QuoteIdent(target.Name))},
		{"rename hold", fmt.Sprintf(sqlRename, db.QuoteTable(hold), db.QuoteIdent(scratch.Name))},
	}

	l.logger.Verbose("Swapping %s with %s", scratch, target)
	// The swap must finish or roll back as a unit once started.
	swapCtx := context.WithoutCancel(ctx)
	return inTx(swapCtx, conn, func(tx stageswap.Tx) error {
		return execAll(swapCtx, tx, statements)
	})
}

func (l *SwapLoader) dropScratch(ctx context.Context, conn stageswap.Conn, scratch stageswap.TableRef) {
	if err := l.store.DropTable(context.WithoutCancel(ctx), conn, scratch); err != nil {
		l.logger.Error("Failed to drop scratch table %s: %v", scratch, err)
		return
	}
	l.logger.Verbose("Dropped scratch table %s", scratch)
}

// holdName is unique per run and fits the identifier limit.
func holdName(run *stageswap.Run) string {
	return "stageswap_hold_" + run.ID.String()[:8]
}

// inTx runs fn in a transaction, committing on success and rolling back
// otherwise. Commit and rollback ignore cancellation of ctx.
func inTx(ctx context.Context, conn stageswap.Conn, fn func(tx stageswap.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return stageswap.StoreError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return stageswap.StoreError("commit", err)
	}
	return nil
}
