package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Validator checks a staged table before it may be committed.
// It only reads the staged table, on whatever Querier it is given, so it sees
// uncommitted staging done on the same transaction.
type Validator struct {
	logger stageswap.Logger
}

// NewValidator creates a Validator. Panics if logger is nil.
func NewValidator(logger stageswap.Logger) *Validator {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Validator{logger: logger}
}

// Validate runs the primary-key check (when spec declares one) and then the
// business-key duplicate check. The first failing check ends validation.
func (v *Validator) Validate(ctx context.Context, q stageswap.Querier, artifact stageswap.TableRef, spec stageswap.ValidationSpec) (stageswap.IntegrityReport, error) {
	var report stageswap.IntegrityReport
	table := db.QuoteTable(artifact)

	if len(spec.PrimaryKey) > 0 {
		report.PrimaryKeyChecked = true
		key, count, err := v.worstKey(ctx, q, table, spec.PrimaryKey)
		if err != nil {
			return report, stageswap.StoreError("primary key check", err)
		}
		report.WorstKey = key
		report.WorstKeyCount = count
		if count > 1 {
			v.logger.Error("Primary key %s not unique in %s: %s appears %d times",
				db.QuoteColumns(spec.PrimaryKey), artifact, key, count)
			return report, &stageswap.UniquenessViolationError{Key: key, Count: count}
		}
		v.logger.Verbose("Primary key %s unique in %s", db.QuoteColumns(spec.PrimaryKey), artifact)
	}

	sql := fmt.Sprintf(sqlBusinessKeyCounts, db.QuoteColumns(spec.BusinessKey), table)
	if err := q.QueryRow(ctx, sql).Scan(&report.TotalRows, &report.DistinctRows); err != nil {
		return report, stageswap.StoreError("duplicate check", err)
	}
	if excess := report.TotalRows - report.DistinctRows; excess > 0 {
		v.logger.Error("%d duplicate rows on %s in %s", excess, db.QuoteColumns(spec.BusinessKey), artifact)
		return report, &stageswap.DuplicateRowsError{Excess: excess}
	}

	v.logger.Verbose("Validated %s: %d rows", artifact, report.TotalRows)
	return report, nil
}

// worstKey returns the most frequent primary-key value and its count.
// An empty table has no worst key.
func (v *Validator) worstKey(ctx context.Context, q stageswap.Querier, table string, columns []string) (string, int64, error) {
	sql := fmt.Sprintf(sqlPrimaryKeyWorst, keyExpression(columns), table)

	var key *string
	var count int64
	err := q.QueryRow(ctx, sql).Scan(&key, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	if key == nil {
		return "NULL", count, nil
	}
	return *key, count, nil
}

// keyExpression renders a single column as itself and composite keys as ROW(...).
func keyExpression(columns []string) string {
	if len(columns) == 1 {
		return db.QuoteIdent(columns[0])
	}
	return "ROW(" + db.QuoteColumns(columns) + ")"
}
