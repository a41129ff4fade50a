package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/connectivity"
	"github.com/ledgerline/ledgersync/internal/dedupe"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/reconcile"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// Config controls the orchestrator.
type Config struct {
	Logger logrus.FieldLogger
	// Parallelism bounds how many transactions have their dependents
	// reconciled at once.
	Parallelism int
	// AutoFull schedules a FullSync after SyncOnConnect.
	AutoFull bool
	// FullSyncDelay is the wait between SyncOnConnect and the scheduled
	// FullSync.
	FullSyncDelay time.Duration
	Observers     []Observer
	// Now stamps checkpoints and reports. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns sequential processing with a full sync three
// seconds after connect.
func DefaultConfig() Config {
	return Config{
		Parallelism:   1,
		AutoFull:      true,
		FullSyncDelay: 3 * time.Second,
	}
}

// sweptKinds are swept for duplicates at the start of a full sync.
var sweptKinds = []schema.Kind{schema.KindTransaction, schema.KindDailyLog, schema.KindContact}

// syncer implements the Syncer interface.
type syncer struct {
	local   store.LocalAdapter
	remote  store.RemoteAdapter
	conn    connectivity.Provider
	rec     *reconcile.Reconciler
	sweeper *dedupe.Sweeper
	cfg     Config
	log     logrus.FieldLogger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// New creates a Syncer.
//
// If cfg.Logger is nil, the standard logrus logger is used.
func New(local store.LocalAdapter, remote store.RemoteAdapter, conn connectivity.Provider, cfg Config) Syncer {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &syncer{
		local:   local,
		remote:  remote,
		conn:    conn,
		rec:     reconcile.New(local, remote, conn, reconcile.Config{Logger: cfg.Logger, Now: now}),
		sweeper: dedupe.NewSweeper(cfg.Logger),
		cfg:     cfg,
		log:     logging.For(cfg.Logger, "sync"),
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *syncer) begin(mode, owner string) (*Report, error) {
	if owner == "" {
		return nil, apperr.ErrNoOwner
	}
	if !s.conn.Online() {
		return nil, apperr.Offline(mode + " sync")
	}
	for _, o := range s.cfg.Observers {
		o.SyncStarted(mode, owner)
	}
	s.log.WithFields(logrus.Fields{"mode": mode, "owner": owner}).Info("sync started")
	return &Report{
		Mode:    mode,
		Owner:   owner,
		Started: s.now(),
		Results: make(map[schema.Kind]reconcile.Result),
	}, nil
}

func (s *syncer) finish(rep *Report) Report {
	rep.Finished = s.now()
	entry := s.log.WithFields(logrus.Fields{
		"mode":     rep.Mode,
		"owner":    rep.Owner,
		"applied":  rep.Applied(),
		"parents":  rep.Parents,
		"duration": rep.Finished.Sub(rep.Started),
	})
	if rep.OK() {
		entry.Info("sync complete")
	} else {
		entry.WithField("errors", len(rep.Errors)).Warn("sync complete with errors")
	}
	for _, o := range s.cfg.Observers {
		o.SyncFinished(*rep)
	}
	return *rep
}

// reconcileKind runs a checkpointed pass and records it in rep.
func (s *syncer) reconcileKind(ctx context.Context, rep *Report, kind schema.Kind, scope string) {
	res, err := s.rec.Reconcile(ctx, kind, scope)
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("failed to reconcile %s: %w", kind, err))
		s.log.WithError(err).WithField("kind", kind).Warn("reconcile aborted")
		return
	}
	s.record(rep, res)
}

func (s *syncer) record(rep *Report, res reconcile.Result) {
	rep.Results[res.Kind] = res
	for _, o := range s.cfg.Observers {
		o.KindReconciled(res)
	}
}

// MinimalSync implements Syncer.MinimalSync.
func (s *syncer) MinimalSync(ctx context.Context, owner string) (Report, error) {
	rep, err := s.begin(ModeMinimal, owner)
	if err != nil {
		return Report{}, err
	}
	s.reconcileKind(ctx, rep, schema.KindOwner, owner)
	s.reconcileKind(ctx, rep, schema.KindTransaction, owner)
	return s.finish(rep), nil
}

// FullSync implements Syncer.FullSync.
func (s *syncer) FullSync(ctx context.Context, owner string) (Report, error) {
	rep, err := s.begin(ModeFull, owner)
	if err != nil {
		return Report{}, err
	}

	s.sweep(ctx, rep, owner)

	s.reconcileKind(ctx, rep, schema.KindOwner, owner)
	s.reconcileKind(ctx, rep, schema.KindTransaction, owner)

	parents := s.parentIDs(ctx, rep, owner)
	rep.Parents = len(parents)
	s.reconcileDependents(ctx, rep, parents)

	for _, kind := range schema.OwnerScopedKinds() {
		s.reconcileKind(ctx, rep, kind, owner)
	}
	return s.finish(rep), nil
}

// sweep removes duplicates from each store independently.
func (s *syncer) sweep(ctx context.Context, rep *Report, owner string) {
	sides := []struct {
		name string
		st   store.Adapter
	}{
		{"local", s.local},
		{"remote", s.remote},
	}
	for _, kind := range sweptKinds {
		for _, side := range sides {
			res, err := s.sweeper.Sweep(ctx, side.st, kind, owner)
			if err != nil {
				rep.Errors = append(rep.Errors, fmt.Errorf("failed to sweep %s %s: %w", side.name, kind, err))
				continue
			}
			rep.Sweeps = append(rep.Sweeps, res)
		}
	}
}

// parentIDs returns the transactions present in either store, sorted.
func (s *syncer) parentIDs(ctx context.Context, rep *Report, owner string) []string {
	seen := make(map[string]struct{})
	for _, st := range []store.Adapter{s.local, s.remote} {
		recs, err := st.GetAll(ctx, schema.KindTransaction, owner)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("failed to list transactions: %w", err))
			continue
		}
		for _, r := range recs {
			seen[r.RecordID()] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// reconcileDependents reconciles every dependent kind of every parent and
// checkpoints each kind whose passes all completed.
func (s *syncer) reconcileDependents(ctx context.Context, rep *Report, parents []string) {
	kinds := schema.DependentKinds()

	var mu sync.Mutex
	totals := make(map[schema.Kind]*reconcile.Result, len(kinds))
	aborted := make(map[schema.Kind]bool, len(kinds))
	for _, k := range kinds {
		totals[k] = &reconcile.Result{Kind: k}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, parent := range parents {
		g.Go(func() error {
			for _, kind := range kinds {
				res, err := s.rec.Pass(gctx, kind, parent)

				mu.Lock()
				if err != nil {
					aborted[kind] = true
					rep.Errors = append(rep.Errors, fmt.Errorf("failed to reconcile %s of %s: %w", kind, parent, err))
				} else {
					totals[kind].Add(res)
				}
				mu.Unlock()

				if errors.Is(err, apperr.ErrOffline) {
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, kind := range kinds {
		if !aborted[kind] {
			if err := s.rec.Checkpoint(ctx, kind); err != nil {
				rep.Errors = append(rep.Errors, err)
			}
		}
		s.record(rep, *totals[kind])
	}
}

// SyncOnConnect implements Syncer.SyncOnConnect.
func (s *syncer) SyncOnConnect(ctx context.Context, owner string) (Report, error) {
	rep, err := s.MinimalSync(ctx, owner)
	if err != nil {
		return rep, err
	}
	if s.cfg.AutoFull {
		s.ScheduleFullSync(owner, s.cfg.FullSyncDelay)
	}
	return rep, nil
}

// ScheduleFullSync implements Syncer.ScheduleFullSync.
func (s *syncer) ScheduleFullSync(owner string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.pending != nil && s.pending.Stop() {
		s.wg.Done()
	}

	s.wg.Add(1)
	s.pending = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if _, err := s.FullSync(s.ctx, owner); err != nil {
			s.log.WithError(err).Warn("scheduled full sync skipped")
		}
	})
	s.log.WithField("delay", delay).Debug("full sync scheduled")
}

// Status implements Syncer.Status.
func (s *syncer) Status(ctx context.Context) (Status, error) {
	cps, err := s.local.Checkpoints(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read checkpoints: %w", err)
	}
	st := Status{Kinds: make(map[schema.Kind]time.Time, len(cps))}
	for _, kind := range schema.Kinds() {
		at, ok := cps[kind]
		if !ok {
			st.Missing = append(st.Missing, kind)
			continue
		}
		st.Kinds[kind] = at
		if st.Oldest.IsZero() || at.Before(st.Oldest) {
			st.Oldest = at
		}
	}
	st.AllSynced = len(st.Missing) == 0
	return st, nil
}

// Close implements Syncer.Close.
func (s *syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pending != nil && s.pending.Stop() {
		s.wg.Done()
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}
