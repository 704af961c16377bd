package services

import (
	"context"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// SQL templates for staging, validation, and promotion.
// %s placeholders receive identifiers already quoted with pgx.Identifier;
// values always travel as bind parameters.

const (
	sqlCreateSchema = `CREATE SCHEMA IF NOT EXISTS %s`

	sqlDropTable = `DROP TABLE IF EXISTS %s`

	// sqlCreateScratchAs materializes the configured select into the scratch table.
	sqlCreateScratchAs = `CREATE TABLE %s AS %s`

	// sqlEnsureTargetLike gives the first swap a table to rename away.
	sqlEnsureTargetLike = `CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM %s WITH NO DATA`

	sqlLockExclusive = `LOCK TABLE %s IN ACCESS EXCLUSIVE MODE`

	// sqlRename takes a qualified source and a bare new name; renames stay in the schema.
	sqlRename = `ALTER TABLE %s RENAME TO %s`

	// sqlPrimaryKeyWorst returns the most repeated key, ties broken by key text.
	sqlPrimaryKeyWorst = `SELECT %s::text, COUNT(1) FROM %s GROUP BY 1 ORDER BY 2 DESC, 1 ASC LIMIT 1`

	// sqlBusinessKeyCounts compares all rows against distinct business-key tuples.
	// ROW() keeps NULL keys comparable instead of silently dropping them.
	sqlBusinessKeyCounts = `SELECT COUNT(*), COUNT(DISTINCT ROW(%s)) FROM %s`
)

// Price table layout.
const (
	sqlCreatePriceTable = `CREATE TABLE IF NOT EXISTS %s (
		open     double precision,
		high     double precision,
		low      double precision,
		close    double precision,
		t_volume bigint,
		t_date   date,
		symbol   varchar(20),
		PRIMARY KEY (t_date, symbol)
	)`

	sqlDeleteAll = `DELETE FROM %s`

	// sqlCreatePriceStage copies columns and NOT NULL only, so duplicate keys
	// reach the validator instead of failing the insert.
	sqlCreatePriceStage = `CREATE TEMP TABLE %s (LIKE %s) ON COMMIT DROP`

	sqlInsertPrice = `INSERT INTO %s (open, high, low, close, t_volume, t_date, symbol) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	sqlPromotePrices = `INSERT INTO %s (open, high, low, close, t_volume, t_date, symbol)
		SELECT open, high, low, close, t_volume, t_date, symbol FROM %s`
)

// priceStageTable is session-private (pg_temp), so a fixed name cannot collide between runs.
const priceStageTable = "stageswap_stage"

var priceKeyColumns = []string{"t_date", "symbol"}

// statement pairs SQL with the step name reported when it fails.
type statement struct {
	step string
	sql  string
}

// execAll runs statements in order and stops at the first failure.
func execAll(ctx context.Context, q stageswap.Querier, statements []statement) error {
	for _, s := range statements {
		if _, err := q.Exec(ctx, s.sql); err != nil {
			return stageswap.StoreError(s.step, err)
		}
	}
	return nil
}
