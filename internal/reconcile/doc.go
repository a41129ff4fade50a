// Package reconcile brings one kind within one scope into agreement between
// the local and the remote store.
//
// # Policy
//
// A pass fetches both sides, indexes them by id and by fingerprint, then:
//
//   - Download: a remote record whose id exists locally replaces the local
//     copy when they differ (remote wins on an id collision). A remote
//     record with a new id is inserted locally unless the local store
//     already holds a record with the same fingerprint.
//   - Upload: a local record whose id is new to the remote is created there
//     unless the remote already holds a record with the same fingerprint.
//     Local edits to ids the remote already knows are never pushed here;
//     only the write path pushes edits.
//
// When a fingerprint match pairs a local-only id with a remote-only id, both
// stores converge on the smaller id and the other copy is retired, moving
// its dependents first. Writes are issued only when payloads differ, so a
// second pass with no intervening mutations writes nothing.
//
// Singleton kinds (one shipment per transaction) never add a second record:
// each side is reduced to its canonical record, and when both sides have
// one they are shallow-merged with non-empty remote fields winning.
//
// # Known limitation
//
// Because the remote wins on an id collision, a local edit that the write
// path never mirrored (made offline, or whose mirror failed) is overwritten
// by the remote copy on the next pass when that id exists remotely.
//
// # Failure
//
// Offline returns apperr.ErrOffline before any store is touched. A failed
// fetch aborts the pass. Failures on individual records are collected in
// Result.Errors and the pass carries on.
package reconcile
