package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// SweepResult reports one sweep of one kind in one store.
type SweepResult struct {
	Kind    schema.Kind
	Groups  int
	Removed []string
	Errors  []error
}

// Sweeper deletes non-canonical duplicates already present in a store.
//
// A sweep only sees the store it is given. Run it against the local and the
// remote store separately.
type Sweeper struct {
	log logrus.FieldLogger
}

// NewSweeper creates a sweeper. A nil logger uses the standard logger.
func NewSweeper(log logrus.FieldLogger) *Sweeper {
	return &Sweeper{log: logging.For(log, "dedupe")}
}

// Sweep groups every record of kind within scope (all scopes when empty) and
// retires each non-canonical member. Failures on individual records are
// collected; a failed fetch aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context, st store.Adapter, kind schema.Kind, scope string) (SweepResult, error) {
	res := SweepResult{Kind: kind}

	records, err := st.GetAll(ctx, kind, scope)
	if err != nil {
		return res, fmt.Errorf("failed to fetch %s for sweep: %w", kind, err)
	}

	for _, r := range Duplicates(kind, records) {
		res.Groups++
		for _, dup := range r.Remove {
			if err := Retire(ctx, st, dup, r.Keep.RecordID()); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"kind": kind,
					"id":   dup.RecordID(),
				}).Warn("failed to remove duplicate")
				res.Errors = append(res.Errors, err)
				continue
			}
			res.Removed = append(res.Removed, dup.RecordID())
		}
	}

	if len(res.Removed) > 0 {
		s.log.WithFields(logrus.Fields{
			"kind":    kind,
			"groups":  res.Groups,
			"removed": len(res.Removed),
		}).Info("removed duplicates")
	}
	return res, nil
}

// Retire deletes rec from st after moving the dependents of a parent record
// to keepID, so no child is left pointing at a deleted parent. Deleting a
// record that is already gone is not an error.
func Retire(ctx context.Context, st store.Adapter, rec schema.Record, keepID string) error {
	kind := rec.RecordKind()
	if schema.MustSpec(kind).Tier == schema.TierParent && keepID != "" && keepID != rec.RecordID() {
		if err := Rehome(ctx, st, rec.RecordID(), keepID); err != nil {
			return err
		}
	}

	err := st.Delete(ctx, kind, rec.RecordID())
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("failed to delete %s %s: %w", kind, rec.RecordID(), err)
	}
	return nil
}

// Rehome moves every dependent of parent fromID to parent toID.
func Rehome(ctx context.Context, st store.Adapter, fromID, toID string) error {
	for _, dk := range schema.DependentKinds() {
		children, err := st.GetAll(ctx, dk, fromID)
		if err != nil {
			return fmt.Errorf("failed to fetch %s of %s: %w", dk, fromID, err)
		}
		for _, child := range children {
			child.SetScopeID(toID)
			if err := st.Update(ctx, child); err != nil {
				return fmt.Errorf("failed to move %s %s to %s: %w", dk, child.RecordID(), toID, err)
			}
		}
	}
	return nil
}
