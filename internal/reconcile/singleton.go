package reconcile

import (
	"context"

	"github.com/ledgerline/ledgersync/internal/dedupe"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// singleton reconciles a kind that holds at most one record per scope.
func (r *Reconciler) singleton(ctx context.Context, spec schema.KindSpec, res *Result, localRecs, remoteRecs []schema.Record) {
	p := &pass{r: r, spec: spec, res: res}
	lr := p.reduce(ctx, r.local, localRecs)
	rr := p.reduce(ctx, r.remote, remoteRecs)

	switch {
	case lr == nil && rr == nil:
		return
	case lr == nil:
		if err := r.local.Add(ctx, rr); err != nil {
			p.fail("add local", rr, err)
			return
		}
		res.Applied++
	case rr == nil:
		if err := r.remote.CreateOrUpdate(ctx, lr); err != nil {
			p.fail("create remote", lr, err)
			return
		}
		res.Applied++
	default:
		p.merge(ctx, lr, rr)
	}
}

// reduce retires every record but the canonical one and returns it.
func (p *pass) reduce(ctx context.Context, st store.Adapter, records []schema.Record) schema.Record {
	if len(records) == 0 {
		return nil
	}
	r := dedupe.Resolve(records)
	for _, extra := range r.Remove {
		if err := dedupe.Retire(ctx, st, extra, r.Keep.RecordID()); err != nil {
			p.fail("retire", extra, err)
			continue
		}
		p.res.Retired++
	}
	return r.Keep
}

// merge overlays the remote record onto the local one and writes the result
// under the remote id wherever it differs.
func (p *pass) merge(ctx context.Context, lr, rr schema.Record) {
	merged, err := schema.ShallowMerge(lr, rr)
	if err != nil {
		p.fail("merge", rr, err)
		return
	}

	switch {
	case lr.RecordID() != merged.RecordID():
		if err := p.r.local.Add(ctx, merged); err != nil {
			p.fail("add local", merged, err)
			return
		}
		p.res.Applied++
		if err := dedupe.Retire(ctx, p.r.local, lr, merged.RecordID()); err != nil {
			p.fail("retire local", lr, err)
		} else {
			p.res.Retired++
		}
	case !schema.Equal(lr, merged):
		if err := p.r.local.Update(ctx, merged); err != nil {
			p.fail("update local", merged, err)
			return
		}
		p.res.Applied++
	}

	if schema.Equal(rr, merged) {
		if p.res.Applied == 0 {
			p.res.Unchanged++
		}
		return
	}
	if err := p.r.remote.Update(ctx, merged); err != nil {
		p.fail("update remote", merged, err)
		return
	}
	p.res.Applied++
}
