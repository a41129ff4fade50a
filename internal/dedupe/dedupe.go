// Package dedupe detects and resolves records that independent devices
// created for the same real-world event.
//
// Duplicates share a fingerprint (see schema.Fingerprint) but carry
// different ids. The canonical survivor of a group is the record whose id
// sorts smallest, a rule every device can apply on its own and still agree
// on the outcome:
//
//	groups := dedupe.GroupByFingerprint(schema.KindTransaction, records)
//	for _, group := range groups {
//	    res := dedupe.Resolve(group)
//	    // keep res.Keep, drop res.Remove
//	}
//
// Detection is used twice: the reconciler consults the fingerprint of the
// target store before inserting, and the Sweeper deletes non-canonical
// members of groups already present in one store.
package dedupe

import (
	"sort"

	"github.com/ledgerline/ledgersync/internal/schema"
)

// Resolution is the outcome of resolving one duplicate group.
type Resolution struct {
	Fingerprint string
	Keep        schema.Record
	Remove      []schema.Record
}

// GroupByFingerprint buckets records of kind by fingerprint. Each bucket
// keeps the input order. Records of another kind are ignored.
func GroupByFingerprint(kind schema.Kind, records []schema.Record) map[string][]schema.Record {
	spec := schema.MustSpec(kind)
	groups := make(map[string][]schema.Record)
	for _, rec := range records {
		if rec.RecordKind() != kind {
			continue
		}
		fp := spec.Fingerprint(rec)
		groups[fp] = append(groups[fp], rec)
	}
	return groups
}

// ChooseCanonical returns the member with the lexicographically smallest id,
// or nil for an empty group.
func ChooseCanonical(group []schema.Record) schema.Record {
	var best schema.Record
	for _, rec := range group {
		if best == nil || rec.RecordID() < best.RecordID() {
			best = rec
		}
	}
	return best
}

// Resolve splits group into its canonical survivor and the rest.
func Resolve(group []schema.Record) Resolution {
	keep := ChooseCanonical(group)
	res := Resolution{Keep: keep}
	if keep == nil {
		return res
	}
	res.Fingerprint = schema.Fingerprint(keep)
	for _, rec := range group {
		if rec.RecordID() != keep.RecordID() {
			res.Remove = append(res.Remove, rec)
		}
	}
	return res
}

// Duplicates resolves every group with more than one member, ordered by
// fingerprint.
func Duplicates(kind schema.Kind, records []schema.Record) []Resolution {
	groups := GroupByFingerprint(kind, records)
	fps := make([]string, 0, len(groups))
	for fp, g := range groups {
		if len(g) > 1 {
			fps = append(fps, fp)
		}
	}
	sort.Strings(fps)

	out := make([]Resolution, 0, len(fps))
	for _, fp := range fps {
		out = append(out, Resolve(groups[fp]))
	}
	return out
}

// CanonicalIndex maps each fingerprint to its canonical record.
func CanonicalIndex(kind schema.Kind, records []schema.Record) map[string]schema.Record {
	groups := GroupByFingerprint(kind, records)
	idx := make(map[string]schema.Record, len(groups))
	for fp, g := range groups {
		idx[fp] = ChooseCanonical(g)
	}
	return idx
}
