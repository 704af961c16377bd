package stageswap

import (
	"context"

	"github.com/google/uuid"
)

// PriceExtractor pulls the most recent limit days for one symbol.
// Implementations return either a complete window or an error, never a partial window.
type PriceExtractor interface {
	FetchDaily(ctx context.Context, symbol string, limit int) (RunWindow, error)
}

// Archiver lands the raw provider payload of a run outside the warehouse.
type Archiver interface {
	Archive(ctx context.Context, runID uuid.UUID, window RunWindow) error
}

// Pipeline runs one of the two load variants end to end.
type Pipeline interface {
	// RunStockPrice extracts a price window and loads it with a transactional full refresh.
	RunStockPrice(ctx context.Context, config StockPriceConfig) (LoadResult, error)

	// RunSessionSummary stages a select into a scratch table, validates it,
	// and swaps it with the target.
	RunSessionSummary(ctx context.Context, config SessionSummaryConfig) (LoadResult, error)
}
