package services

import (
	"context"
	"fmt"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// priceValidation is the fixed integrity contract of the price table.
var priceValidation = stageswap.ValidationSpec{
	PrimaryKey:  priceKeyColumns,
	BusinessKey: priceKeyColumns,
}

// FullRefreshLoader replaces the whole price table inside one transaction:
// clear, stage, validate, promote, commit. Any failure rolls everything back,
// including the delete.
//
// Thread-Safety: NOT safe for concurrent Load calls on the same connection.
type FullRefreshLoader struct {
	validator *Validator
	store     storeManager
	logger    stageswap.Logger
}

// NewFullRefreshLoader creates a FullRefreshLoader. Panics if any dependency is nil.
func NewFullRefreshLoader(validator *Validator, store storeManager, logger stageswap.Logger) *FullRefreshLoader {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &FullRefreshLoader{validator: validator, store: store, logger: logger}
}

// Load writes window into config.Target. It advances run through Staged,
// Validated and Committed; the caller aborts run on error.
//
// On a dry run everything is rolled back after validation and the result
// carries the integrity report instead of a row count.
func (l *FullRefreshLoader) Load(ctx context.Context, run *stageswap.Run, conn stageswap.Conn, config stageswap.StockPriceConfig, window stageswap.RunWindow) (result stageswap.LoadResult, err error) {
	target := config.Target
	stage := stageswap.TableRef{Name: priceStageTable}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return stageswap.LoadResult{}, stageswap.StoreError("begin", err)
	}
	defer func() {
		// No-op after a successful commit.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			l.logger.Error("Rollback failed: %v", rbErr)
		} else if err != nil {
			l.logger.Verbose("Rolled back changes to %s", target)
		}
	}()

	if err := l.stage(ctx, tx, target, stage, window); err != nil {
		return stageswap.LoadResult{}, err
	}
	if err := run.Advance(stageswap.StateStaged); err != nil {
		return stageswap.LoadResult{}, err
	}

	report, err := l.validator.Validate(ctx, tx, stage, priceValidation)
	if err != nil {
		return stageswap.LoadResult{}, err
	}
	if err := run.Advance(stageswap.StateValidated); err != nil {
		return stageswap.LoadResult{}, err
	}

	if config.DryRun {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			return stageswap.LoadResult{}, stageswap.StoreError("rollback", err)
		}
		l.logger.Info("✓ Dry run: %d price rows validated, %s untouched", report.TotalRows, target)
		return stageswap.LoadResult{Table: target.String(), DryRun: true, Report: &report}, nil
	}

	promote := fmt.Sprintf(sqlPromotePrices, db.QuoteTable(target), db.QuoteTable(stage))
	if _, err := tx.Exec(ctx, promote); err != nil {
		return stageswap.LoadResult{}, stageswap.StoreError("promote", err)
	}
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return stageswap.LoadResult{}, stageswap.StoreError("commit", err)
	}
	if err := run.Advance(stageswap.StateCommitted); err != nil {
		return stageswap.LoadResult{}, err
	}

	inserted, err := l.store.CountRows(ctx, conn, target)
	if err != nil {
		return stageswap.LoadResult{}, stageswap.StoreError("count rows", err)
	}

	l.logger.Info("✓ Loaded %d rows into %s", inserted, target)
	return stageswap.LoadResult{InsertedRows: inserted, Table: target.String()}, nil
}

// stage prepares the target and fills the constraint-free stage table.
func (l *FullRefreshLoader) stage(ctx context.Context, tx stageswap.Tx, target, stage stageswap.TableRef, window stageswap.RunWindow) error {
	var statements []statement
	if target.Schema != "" {
		statements = append(statements, statement{"create schema", fmt.Sprintf(sqlCreateSchema, db.QuoteIdent(target.Schema))})
	}
	statements = append(statements,
		statement{"create target", fmt.Sprintf(sqlCreatePriceTable, db.QuoteTable(target))},
		statement{"clear target", fmt.Sprintf(sqlDeleteAll, db.QuoteTable(target))},
		statement{"create stage", fmt.Sprintf(sqlCreatePriceStage, db.QuoteTable(stage), db.QuoteTable(target))},
	)
	if err := execAll(ctx, tx, statements); err != nil {
		return err
	}

	insert := fmt.Sprintf(sqlInsertPrice, db.QuoteTable(stage))
	for _, r := range window.Records {
		if _, err := tx.Exec(ctx, insert, r.Open, r.High, r.Low, r.Close, r.Volume, r.Date, r.Symbol); err != nil {
			return stageswap.StoreError("insert", fmt.Errorf("%s %s: %w", r.Symbol, r.Date.Format("2006-01-02"), err))
		}
	}

	l.logger.Verbose("Staged %d price rows for %s", len(window.Records), window.Symbol)
	return nil
}
