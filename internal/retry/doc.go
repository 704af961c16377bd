// Package retry re-attempts warehouse connection establishment with
// exponential backoff.
//
// Only opening the pool is retried. Statements inside a run are never
// re-issued: a failed stage aborts the run and the scheduler decides
// whether to start a new one.
//
//	executor := retry.NewExecutor(retry.NewConnectErrorClassifier(), retry.NewExponentialBackoff(3), logger)
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return openPool(ctx)
//	})
package retry
