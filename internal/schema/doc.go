// Package schema defines the replicated record kinds and their descriptors.
//
// # Overview
//
// Every record is a flat JSON document with a client-generated identifier
// that is stable for the record's lifetime and joins the local and remote
// copies. Records fall into four tiers:
//
//	owner            profile of the account owner (scope = its own id)
//	transaction      parent business record (scope = owner id)
//	purchase, shipment, sale,
//	payment, note, attachment   dependents (scope = transaction id)
//	daily_log, contact          owner-scoped (scope = owner id)
//
// # Kind descriptors
//
// Each kind is described by a KindSpec. The reconciler and the duplicate
// sweep only ever talk to records through the Record interface and the
// descriptor, never through concrete types:
//
//	spec := schema.MustSpec(schema.KindPayment)
//	rec := spec.New()                 // empty *Payment
//	fp := spec.Fingerprint(rec)       // "in-120.5-cash-2024-03-02"
//
// # Fingerprints
//
// A fingerprint is the semantic key used to spot records that two devices
// created independently for the same real-world event. It excludes the
// identifier and exact timestamps: text is trimmed and NFC-normalised, money
// uses the decimal's canonical string and times collapse to their UTC day.
//
// Example, a transaction named "Acme" created on 2024-01-01:
//
//	Acme-2024-01-01
package schema
