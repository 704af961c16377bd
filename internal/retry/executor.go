package retry

import (
	"context"
	"time"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Executor runs an operation until it succeeds, fails fatally, or runs out
// of attempts. Safe for concurrent use.
type Executor struct {
	classifier stageswap.ErrorClassifier
	strategy   stageswap.BackoffStrategy
	logger     stageswap.Logger
}

// NewExecutor creates a retry executor. A nil logger discards retry notices.
// Panics if classifier or strategy is nil.
func NewExecutor(classifier stageswap.ErrorClassifier, strategy stageswap.BackoffStrategy, logger stageswap.Logger) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
		logger:     logger,
	}
}

// Execute calls operation once, then once per allowed retry while the
// returned error is transient. The last error is returned unchanged.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	err := operation(ctx)
	max := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err) && (max < 0 || attempt < max); attempt++ {
		delay := e.strategy.NextDelay(attempt)
		if e.logger != nil {
			e.logger.Verbose("transient failure (retry %d in %v): %v", attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = operation(ctx)
	}

	return err
}
