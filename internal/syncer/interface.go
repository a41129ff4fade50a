package syncer

import (
	"context"
	"time"

	"github.com/ledgerline/ledgersync/internal/dedupe"
	"github.com/ledgerline/ledgersync/internal/reconcile"
	"github.com/ledgerline/ledgersync/internal/schema"
)

// Sync modes reported to observers.
const (
	ModeMinimal = "minimal"
	ModeFull    = "full"
)

// Syncer orchestrates reconciliation for one owner.
type Syncer interface {
	// MinimalSync reconciles the owner profile and the transactions only,
	// so a caller can show a usable screen quickly.
	MinimalSync(ctx context.Context, owner string) (Report, error)

	// FullSync sweeps duplicates and reconciles every kind in dependency
	// order.
	FullSync(ctx context.Context, owner string) (Report, error)

	// SyncOnConnect runs MinimalSync and, when auto full sync is enabled,
	// schedules a FullSync after the configured delay.
	SyncOnConnect(ctx context.Context, owner string) (Report, error)

	// ScheduleFullSync runs FullSync after delay in the background. A
	// schedule that has not fired yet is replaced.
	ScheduleFullSync(owner string, delay time.Duration)

	// Status summarises the per-kind checkpoints.
	Status(ctx context.Context) (Status, error)

	// Close cancels any scheduled run and waits for it to exit.
	Close()
}

// Observer is notified as a sync progresses. Calls are made from the
// goroutine running the sync.
type Observer interface {
	SyncStarted(mode, owner string)
	KindReconciled(res reconcile.Result)
	SyncFinished(rep Report)
}

// NopObserver implements Observer with no-ops. Embed it to implement a
// subset.
type NopObserver struct{}

func (NopObserver) SyncStarted(string, string)      {}
func (NopObserver) KindReconciled(reconcile.Result) {}
func (NopObserver) SyncFinished(Report)             {}

// Report describes one sync run.
type Report struct {
	Mode     string
	Owner    string
	Started  time.Time
	Finished time.Time
	// Parents is the number of transactions whose dependents were
	// reconciled.
	Parents int
	Sweeps  []dedupe.SweepResult
	// Results holds one aggregated result per reconciled kind.
	Results map[schema.Kind]reconcile.Result
	Errors  []error
}

// OK reports whether the run finished without any failure.
func (r Report) OK() bool {
	if len(r.Errors) > 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	for _, sw := range r.Sweeps {
		if len(sw.Errors) > 0 {
			return false
		}
	}
	return true
}

// Applied is the total number of writes issued by the run.
func (r Report) Applied() int {
	n := 0
	for _, res := range r.Results {
		n += res.Applied
	}
	for _, sw := range r.Sweeps {
		n += len(sw.Removed)
	}
	return n
}

// Status is the sync state across all kinds.
type Status struct {
	// AllSynced is true when every kind has a checkpoint.
	AllSynced bool
	// Oldest is the oldest checkpoint, zero when none exists.
	Oldest  time.Time
	Kinds   map[schema.Kind]time.Time
	Missing []schema.Kind
}
