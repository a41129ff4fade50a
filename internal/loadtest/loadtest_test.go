package loadtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
)

func newFixture(t *testing.T, opts Options) *Fixture {
	t.Helper()
	opts.Logger = logging.Discard()
	f, err := CreateFixture(context.Background(), t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestCreateFixture(t *testing.T) {
	f := newFixture(t, Options{Owner: "o-1", Parents: 5, Children: 6, Seed: 1})

	if len(f.ParentIDs) != 5 {
		t.Errorf("Expected 5 parents, got %d", len(f.ParentIDs))
	}
	if len(f.NoteIDs) != 10 {
		t.Errorf("Expected 10 notes, got %d", len(f.NoteIDs))
	}
	// owner + parents + children
	if want := 1 + 5 + 5*6; f.Records != want {
		t.Errorf("Expected %d records, got %d", want, f.Records)
	}

	n, err := f.Remote.Count(context.Background(), schema.KindTransaction)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty remote, got %d transactions", n)
	}
}

func TestCreateFixture_RequiresParents(t *testing.T) {
	if _, err := CreateFixture(context.Background(), t.TempDir(), Options{}); err == nil {
		t.Fatal("Expected error for zero parents")
	}
}

func TestRunFullSyncs_CopiesThenChurns(t *testing.T) {
	f := newFixture(t, Options{Owner: "o-1", Parents: 4, Children: 3, Parallelism: 2, Churn: 0.5, Seed: 7})
	ctx := context.Background()

	first, err := f.RunFullSyncs(ctx, 1)
	if err != nil {
		t.Fatalf("RunFullSyncs failed: %v", err)
	}
	if first.Errors != 0 {
		t.Fatalf("Expected clean run, got %d failed", first.Errors)
	}
	// The first run copies every seeded record.
	if first.Writes != f.Records {
		t.Errorf("Expected %d writes on first run, got %d", f.Records, first.Writes)
	}
	for _, kind := range []schema.Kind{schema.KindTransaction, schema.KindNote, schema.KindPayment, schema.KindShipment} {
		local, _ := f.Local.Count(ctx, kind)
		remote, _ := f.Remote.Count(ctx, kind)
		if local != remote {
			t.Errorf("%s: local %d, remote %d", kind, local, remote)
		}
	}

	// 4 notes at 50% churn diverge 2 notes per later run.
	stats, err := f.RunFullSyncs(ctx, 3)
	if err != nil {
		t.Fatalf("RunFullSyncs failed: %v", err)
	}
	if stats.Runs != 3 {
		t.Errorf("Expected 3 runs, got %d", stats.Runs)
	}
	if stats.Writes != 4 {
		t.Errorf("Expected 4 churn writes, got %d", stats.Writes)
	}
}

func TestRunFullSyncs_RequiresRuns(t *testing.T) {
	f := newFixture(t, Options{Owner: "o-1", Parents: 1})
	if _, err := f.RunFullSyncs(context.Background(), 0); err == nil {
		t.Fatal("Expected error for zero runs")
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := computeLatencyStats(durations)
	if stats.Min != time.Millisecond || stats.Max != 100*time.Millisecond {
		t.Errorf("Unexpected range: %v..%v", stats.Min, stats.Max)
	}
	if stats.P50 != 51*time.Millisecond {
		t.Errorf("Expected P50 51ms, got %v", stats.P50)
	}
	if stats.P95 != 96*time.Millisecond {
		t.Errorf("Expected P95 96ms, got %v", stats.P95)
	}
	if stats.Mean != 50500*time.Microsecond {
		t.Errorf("Expected mean 50.5ms, got %v", stats.Mean)
	}
	if stats.Runs != 100 {
		t.Errorf("Expected 100 runs, got %d", stats.Runs)
	}

	if empty := computeLatencyStats(nil); empty.Runs != 0 {
		t.Errorf("Expected empty stats, got %+v", empty)
	}
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	computeLatencyStats([]time.Duration{time.Millisecond}).PrintStats(&buf)
	if !strings.Contains(buf.String(), "Runs:          1") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}
