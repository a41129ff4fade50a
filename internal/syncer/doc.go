// Package syncer sequences reconciliation across every kind in dependency
// order.
//
// Overview
//
// The orchestrator owns one reconciler and one duplicate sweeper and runs
// them against the local and remote stores:
//
//	MinimalSync   owner profile, transactions
//	FullSync      sweep (transaction, daily_log, contact; local then remote)
//	              owner profile, transactions
//	              per transaction: purchase, shipment, sale, payment, note, attachment
//	              daily_log, contact
//
// A parent must converge before its children are processed, so dependents
// are only reconciled for transactions present in at least one store once
// the transaction pass has run. Per-parent work can fan out with
// Config.Parallelism; the default processes parents one at a time.
//
// Usage
//
//	s := syncer.New(local, remote, probe, syncer.DefaultConfig())
//	defer s.Close()
//
//	// Fast path on connect, full pass a few seconds later.
//	if _, err := s.SyncOnConnect(ctx, ownerID); err != nil {
//	    return err
//	}
//
// Failures
//
// FullSync returns an error only when there is no owner or the device is
// offline. Every other failure is recorded in Report.Errors and the run
// carries on, so a partial run can always be repeated.
package syncer
