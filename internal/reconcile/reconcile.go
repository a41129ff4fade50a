package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/connectivity"
	"github.com/ledgerline/ledgersync/internal/dedupe"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// Result reports one pass.
type Result struct {
	Kind  schema.Kind
	Scope string
	// Applied counts writes issued to either store.
	Applied int
	// Skipped counts records not copied because the target already holds a
	// record with the same fingerprint.
	Skipped int
	// Unchanged counts ids already identical on both sides.
	Unchanged int
	// Retired counts duplicates removed while converging on a canonical id.
	Retired  int
	Errors   []error
	Duration time.Duration
}

// OK reports whether every record in the pass was handled.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Add folds other into r. Used to aggregate per-scope passes of one kind.
func (r *Result) Add(other Result) {
	r.Applied += other.Applied
	r.Skipped += other.Skipped
	r.Unchanged += other.Unchanged
	r.Retired += other.Retired
	r.Errors = append(r.Errors, other.Errors...)
	r.Duration += other.Duration
}

// Config holds reconciler dependencies that have defaults.
type Config struct {
	Logger logrus.FieldLogger
	// Now stamps checkpoints. Defaults to time.Now.
	Now func() time.Time
}

// Reconciler runs passes between one local and one remote store.
type Reconciler struct {
	local  store.LocalAdapter
	remote store.RemoteAdapter
	conn   connectivity.Provider
	log    logrus.FieldLogger
	now    func() time.Time
}

// New creates a reconciler.
func New(local store.LocalAdapter, remote store.RemoteAdapter, conn connectivity.Provider, cfg Config) *Reconciler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		local:  local,
		remote: remote,
		conn:   conn,
		log:    logging.For(cfg.Logger, "reconcile"),
		now:    now,
	}
}

// Reconcile runs one pass for kind within scope and records the kind's
// checkpoint when the pass was not aborted.
func (r *Reconciler) Reconcile(ctx context.Context, kind schema.Kind, scope string) (Result, error) {
	res, err := r.Pass(ctx, kind, scope)
	if err != nil {
		return res, err
	}
	if err := r.Checkpoint(ctx, kind); err != nil {
		return res, err
	}
	return res, nil
}

// Checkpoint records that kind was reconciled now.
func (r *Reconciler) Checkpoint(ctx context.Context, kind schema.Kind) error {
	if err := r.local.SetCheckpoint(ctx, kind, r.now()); err != nil {
		return fmt.Errorf("failed to record checkpoint: %w", err)
	}
	return nil
}

// Pass runs one pass for kind within scope without touching the checkpoint.
func (r *Reconciler) Pass(ctx context.Context, kind schema.Kind, scope string) (Result, error) {
	start := time.Now()
	res := Result{Kind: kind, Scope: scope}

	if !r.conn.Online() {
		return res, apperr.Offline("reconcile " + string(kind))
	}
	spec, ok := schema.Spec(kind)
	if !ok {
		return res, fmt.Errorf("unknown kind %q", kind)
	}

	remoteRecs, err := r.remote.GetAll(ctx, kind, scope)
	if err != nil {
		return res, fmt.Errorf("failed to fetch remote %s: %w", kind, err)
	}
	localRecs, err := r.local.GetAll(ctx, kind, scope)
	if err != nil {
		return res, fmt.Errorf("failed to fetch local %s: %w", kind, err)
	}

	if spec.Singleton {
		r.singleton(ctx, spec, &res, localRecs, remoteRecs)
	} else {
		p := newPass(r, spec, &res, localRecs, remoteRecs)
		p.download(ctx)
		p.upload(ctx)
	}

	res.Duration = time.Since(start)
	entry := r.log.WithFields(logrus.Fields{
		"kind":      kind,
		"scope":     scope,
		"applied":   res.Applied,
		"skipped":   res.Skipped,
		"unchanged": res.Unchanged,
		"retired":   res.Retired,
		"errors":    len(res.Errors),
	})
	if res.OK() {
		entry.Debug("reconciled")
	} else {
		entry.Warn("reconciled with errors")
	}
	return res, nil
}

// pass holds the working indexes of one non-singleton reconciliation.
type pass struct {
	r    *Reconciler
	spec schema.KindSpec
	res  *Result

	remoteRecs []schema.Record
	localByID  map[string]schema.Record
	remoteByID map[string]schema.Record
	// fingerprint to canonical record on each side
	localByFP  map[string]schema.Record
	remoteByFP map[string]schema.Record
}

func newPass(r *Reconciler, spec schema.KindSpec, res *Result, localRecs, remoteRecs []schema.Record) *pass {
	return &pass{
		r:          r,
		spec:       spec,
		res:        res,
		remoteRecs: remoteRecs,
		localByID:  byID(localRecs),
		remoteByID: byID(remoteRecs),
		localByFP:  dedupe.CanonicalIndex(spec.Kind, localRecs),
		remoteByFP: dedupe.CanonicalIndex(spec.Kind, remoteRecs),
	}
}

func (p *pass) fail(op string, rec schema.Record, err error) {
	p.res.Errors = append(p.res.Errors, fmt.Errorf("failed to %s %s %s: %w", op, p.spec.Kind, rec.RecordID(), err))
	p.r.log.WithError(err).WithFields(logrus.Fields{
		"kind": p.spec.Kind,
		"id":   rec.RecordID(),
		"op":   op,
	}).Warn("reconcile step failed")
}

func (p *pass) download(ctx context.Context) {
	for _, rr := range p.remoteRecs {
		id := rr.RecordID()
		if lr, ok := p.localByID[id]; ok {
			if schema.Equal(lr, rr) {
				p.res.Unchanged++
				continue
			}
			if err := p.r.local.Update(ctx, rr); err != nil {
				p.fail("update local", rr, err)
				continue
			}
			p.localByID[id] = rr
			p.res.Applied++
			continue
		}

		fp := p.spec.Fingerprint(rr)
		if lm, ok := p.localByFP[fp]; ok {
			if _, onRemote := p.remoteByID[lm.RecordID()]; onRemote {
				// The remote holds both ids; its own sweep resolves that.
				p.res.Skipped++
				continue
			}
			p.converge(ctx, fp, lm, rr)
			continue
		}

		if err := p.r.local.Add(ctx, rr); err != nil {
			p.fail("add local", rr, err)
			continue
		}
		p.localByID[id] = rr
		p.localByFP[fp] = rr
		p.res.Applied++
	}
}

// converge resolves a local-only record lm and a remote-only record rr that
// share a fingerprint: both stores end up holding the smaller id.
func (p *pass) converge(ctx context.Context, fp string, lm, rr schema.Record) {
	if lm.RecordID() < rr.RecordID() {
		if err := p.r.remote.CreateOrUpdate(ctx, lm); err != nil {
			p.fail("create remote", lm, err)
			return
		}
		p.remoteByID[lm.RecordID()] = lm
		p.remoteByFP[fp] = lm
		p.res.Applied++

		if err := dedupe.Retire(ctx, p.r.remote, rr, lm.RecordID()); err != nil {
			p.fail("retire remote", rr, err)
			return
		}
		delete(p.remoteByID, rr.RecordID())
		p.res.Retired++
		return
	}

	if err := p.r.local.Add(ctx, rr); err != nil {
		p.fail("add local", rr, err)
		return
	}
	p.localByID[rr.RecordID()] = rr
	p.localByFP[fp] = rr
	p.res.Applied++

	if err := dedupe.Retire(ctx, p.r.local, lm, rr.RecordID()); err != nil {
		p.fail("retire local", lm, err)
		return
	}
	delete(p.localByID, lm.RecordID())
	p.res.Retired++
}

func (p *pass) upload(ctx context.Context) {
	for _, id := range sortedIDs(p.localByID) {
		lr := p.localByID[id]
		if _, ok := p.remoteByID[id]; ok {
			continue
		}

		fp := p.spec.Fingerprint(lr)
		if _, ok := p.remoteByFP[fp]; ok {
			p.res.Skipped++
			continue
		}

		if err := p.r.remote.CreateOrUpdate(ctx, lr); err != nil {
			p.fail("create remote", lr, err)
			continue
		}
		p.remoteByID[id] = lr
		p.remoteByFP[fp] = lr
		p.res.Applied++
	}
}

func byID(records []schema.Record) map[string]schema.Record {
	m := make(map[string]schema.Record, len(records))
	for _, rec := range records {
		m[rec.RecordID()] = rec
	}
	return m
}

func sortedIDs(m map[string]schema.Record) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
