// Package manager provides warehouse housekeeping statements used around a run:
// advisory locking on a target, table existence and row counts, and dropping
// leftover tables.
//
// Table names are rendered with pgx.Identifier.Sanitize(); callers validate
// them with stageswap.ValidateIdentifier first.
//
//	mgr := manager.New()
//	ok, err := mgr.TryLock(ctx, conn, target)
//	defer mgr.Unlock(ctx, conn, target)
//
// Manager is stateless. Thread safety depends on the Querier passed in.
package manager
