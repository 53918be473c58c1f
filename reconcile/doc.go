// Package reconcile detects and resolves field-level conflicts between the
// local (system of record) and remote (marketplace) copies of a product.
//
// An Engine is built from an ordered StrategyConfig. Detect compares two
// snapshots and reports a FieldConflict for every configured field on which
// they disagree; ResolveAll settles each conflict with its field's strategy
// (last write wins, local priority, remote priority, merge or manual review)
// and appends an audit record for every resolved conflict to a bounded,
// concurrency-safe history.
//
// Basic usage:
//
//	engine, err := reconcile.NewEngine(reconcile.DefaultStrategyConfig())
//	if err != nil {
//		return err
//	}
//	res, err := engine.Reconcile("sku-42", local, remote, true)
//	if err != nil {
//		return err
//	}
//	merged := engine.Aggregate(local, remote, res)
//
// The engine performs no I/O. Persisting res.Records, fetching snapshots and
// scheduling runs belong to the calling sync service.
package reconcile
