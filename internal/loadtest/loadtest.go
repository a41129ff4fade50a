// Package loadtest measures full sync latency against real database files.
//
// A fixture seeds one owner's transactions and their dependents into an
// embedded local store, points the syncer at a file-backed remote, and times
// repeated full syncs. The first run copies everything; later runs measure
// the steady state where only churned records need writing.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/connectivity"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
	"github.com/ledgerline/ledgersync/internal/syncer"
)

// Options sizes a fixture and its runs.
type Options struct {
	Owner string
	// Parents is the number of transactions seeded.
	Parents int
	// Children is the number of dependents seeded per transaction, spread
	// over notes, payments and shipments.
	Children int
	// Parallelism is passed to the syncer.
	Parallelism int
	// Churn is the fraction of notes rewritten locally before every run
	// after the first.
	Churn float64
	// Seed makes churn selection reproducible.
	Seed int64

	Logger logrus.FieldLogger
}

// DefaultOptions returns a small fixture suitable for a quick benchmark.
func DefaultOptions() Options {
	return Options{
		Owner:       "bench-owner",
		Parents:     50,
		Children:    6,
		Parallelism: 4,
		Churn:       0.1,
		Seed:        1,
	}
}

// Fixture is a seeded local store paired with a remote.
type Fixture struct {
	Local   *store.Local
	Remote  *store.Remote
	Syncer  syncer.Syncer
	Options Options

	ParentIDs []string
	NoteIDs   []string
	Records   int

	rng *rand.Rand
}

// LatencyStats captures per-run sync timings.
type LatencyStats struct {
	Min       time.Duration
	Max       time.Duration
	Mean      time.Duration
	P50       time.Duration // Median
	P95       time.Duration
	P99       time.Duration
	First     time.Duration // the initial copy
	Runs      int
	Writes    int // across all runs
	Errors    int // runs that reported a failure
	Durations []time.Duration
}

// CreateFixture opens local.db and remote.db inside dir and seeds the local
// store. The remote starts empty.
func CreateFixture(ctx context.Context, dir string, opts Options) (*Fixture, error) {
	if opts.Owner == "" {
		opts.Owner = DefaultOptions().Owner
	}
	if opts.Parents <= 0 {
		return nil, fmt.Errorf("parents must be positive, got %d", opts.Parents)
	}

	local, err := store.OpenLocalContext(ctx, filepath.Join(dir, "local.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	remote, err := store.OpenRemote(ctx, store.RemoteConfig{
		Dialect: store.DialectSQLite,
		DSN:     filepath.Join(dir, "remote.db"),
	})
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	cfg := syncer.DefaultConfig()
	cfg.Logger = logging.For(opts.Logger, "loadtest")
	cfg.Parallelism = opts.Parallelism
	cfg.AutoFull = false

	f := &Fixture{
		Local:   local,
		Remote:  remote,
		Syncer:  syncer.New(local, remote, connectivity.Static(true), cfg),
		Options: opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}

	if err := f.seed(ctx); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// seed writes the owner profile, the transactions and their dependents.
func (f *Fixture) seed(ctx context.Context) error {
	base := time.Now().UTC().Add(-30 * 24 * time.Hour).Truncate(time.Second)

	owner := &schema.Owner{Name: "Load test"}
	owner.ID = f.Options.Owner
	owner.Touch(base)
	if err := f.add(ctx, owner); err != nil {
		return err
	}

	statuses := []string{schema.StatusPending, schema.StatusPending, schema.StatusCompleted}
	for i := 0; i < f.Options.Parents; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		txn := &schema.Transaction{
			OwnerID: f.Options.Owner,
			Name:    fmt.Sprintf("Lot %d", i),
			Status:  statuses[i%len(statuses)],
		}
		txn.ID = fmt.Sprintf("bench-t-%05d", i)
		txn.Touch(created)
		if err := f.add(ctx, txn); err != nil {
			return err
		}
		f.ParentIDs = append(f.ParentIDs, txn.ID)

		for j := 0; j < f.Options.Children; j++ {
			if err := f.add(ctx, f.child(txn.ID, i, j, created)); err != nil {
				return err
			}
		}
	}
	return nil
}

// child builds the j-th dependent of a transaction, cycling through kinds.
func (f *Fixture) child(txn string, i, j int, created time.Time) schema.Record {
	at := created.Add(time.Duration(j) * time.Second)
	id := fmt.Sprintf("bench-%05d-%03d", i, j)
	switch j % 3 {
	case 0:
		n := &schema.Note{TransactionID: txn, Body: fmt.Sprintf("note %d on lot %d", j, i)}
		n.ID = "n-" + id
		n.Touch(at)
		f.NoteIDs = append(f.NoteIDs, n.ID)
		return n
	case 1:
		p := &schema.Payment{
			TransactionID: txn,
			Direction:     schema.DirectionIn,
			Amount:        decimal.New(int64(100+i*10+j), 0),
			Method:        "cash",
			PaidAt:        at,
		}
		p.ID = "p-" + id
		p.Touch(at)
		return p
	default:
		s := &schema.Shipment{TransactionID: txn, Carrier: fmt.Sprintf("carrier-%d", j)}
		s.ID = "s-" + id
		s.Touch(at)
		return s
	}
}

func (f *Fixture) add(ctx context.Context, rec schema.Record) error {
	if err := f.Local.Add(ctx, rec); err != nil {
		return fmt.Errorf("failed to seed %s %s: %w", rec.RecordKind(), rec.RecordID(), err)
	}
	f.Records++
	return nil
}

// Close stops the syncer and closes both stores.
func (f *Fixture) Close() error {
	f.Syncer.Close()
	rerr := f.Remote.Close()
	if err := f.Local.Close(); err != nil {
		return err
	}
	return rerr
}

// churn rewrites a random share of notes locally. The remote copy wins on
// the next sync, so each churned note costs exactly one write.
func (f *Fixture) churn(ctx context.Context, run int) (int, error) {
	n := int(float64(len(f.NoteIDs)) * f.Options.Churn)
	if n == 0 {
		return 0, nil
	}
	for _, idx := range f.rng.Perm(len(f.NoteIDs))[:n] {
		rec, err := f.Local.Get(ctx, schema.KindNote, f.NoteIDs[idx])
		if err != nil {
			return 0, fmt.Errorf("failed to read note: %w", err)
		}
		note := rec.(*schema.Note)
		note.Body = fmt.Sprintf("%s (rev %d)", note.Body, run)
		note.Touch(time.Now().UTC())
		if err := f.Local.Update(ctx, note); err != nil {
			return 0, fmt.Errorf("failed to update note: %w", err)
		}
	}
	return n, nil
}

// RunFullSyncs times runs consecutive full syncs. Notes are churned before
// every run except the first.
func (f *Fixture) RunFullSyncs(ctx context.Context, runs int) (*LatencyStats, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}

	durations := make([]time.Duration, 0, runs)
	writes, errorCount := 0, 0
	for i := 0; i < runs; i++ {
		if i > 0 {
			if _, err := f.churn(ctx, i); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		rep, err := f.Syncer.FullSync(ctx, f.Options.Owner)
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i, err)
		}

		durations = append(durations, elapsed)
		writes += rep.Applied()
		if !rep.OK() {
			errorCount++
		}
	}

	stats := computeLatencyStats(durations)
	stats.First = durations[0]
	stats.Writes = writes
	stats.Errors = errorCount
	return stats, nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      sum / time.Duration(len(durations)),
		P50:       sorted[len(sorted)*50/100],
		P95:       sorted[len(sorted)*95/100],
		P99:       sorted[len(sorted)*99/100],
		Runs:      len(durations),
		Durations: sorted,
	}
}

// PrintStats writes the statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Full sync latency:\n")
	fmt.Fprintf(w, "  Runs:          %d\n", s.Runs)
	fmt.Fprintf(w, "  Writes:        %d\n", s.Writes)
	fmt.Fprintf(w, "  Failed runs:   %d\n", s.Errors)
	fmt.Fprintf(w, "  First run:     %v\n", s.First)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
