package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// ImportedSuffix is appended to an export once it has been imported.
const ImportedSuffix = ".imported"

// Options controls an import.
type Options struct {
	// DryRun converts and validates without writing or renaming.
	DryRun bool
	// KeepFile leaves the export in place after a successful import.
	KeepFile bool
	// Owner fills owner_id on owner-level documents that lack one.
	Owner string
}

// Result contains statistics about an import.
type Result struct {
	Files    []string
	Read     int
	Imported int
	// Skipped counts documents whose id already exists locally.
	Skipped int
	ByKind  map[schema.Kind]int
	Errors  []string
}

// NewResult returns an empty result ready for Merge.
func NewResult() *Result {
	return &Result{ByKind: make(map[schema.Kind]int)}
}

// Merge adds other's counts to r.
func (r *Result) Merge(other *Result) {
	r.Files = append(r.Files, other.Files...)
	r.Read += other.Read
	r.Imported += other.Imported
	r.Skipped += other.Skipped
	for k, n := range other.ByKind {
		r.ByKind[k] += n
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Importer copies legacy exports into the local store.
type Importer struct {
	st  store.Adapter
	log logrus.FieldLogger
	now func() time.Time
}

// NewImporter creates an importer writing to st.
func NewImporter(st store.Adapter, log logrus.FieldLogger) *Importer {
	return &Importer{st: st, log: logging.For(log, "legacy"), now: time.Now}
}

// ReadFile parses an export. A malformed line fails the whole file.
func ReadFile(path string) ([]Line, error) {
	// #nosec G304 - controlled path from config or CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer file.Close()

	var lines []Line
	decoder := json.NewDecoder(file)
	decoder.UseNumber()
	lineNum := 0
	for {
		var line Line
		if err := decoder.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum+1, err)
		}
		lineNum++
		lines = append(lines, line)
	}
	return lines, nil
}

// ImportFile imports one export. Per-document failures are collected in the
// result; only an unreadable file returns an error.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (*Result, error) {
	lines, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Files = []string{path}
	for i, line := range lines {
		result.Read++
		rec, err := Convert(line)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		if opts.Owner != "" && rec.ScopeID() == "" && schema.MustSpec(rec.RecordKind()).Tier != schema.TierDependent {
			rec.SetScopeID(opts.Owner)
		}
		if rec.RecordID() == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s without id", i+1, rec.RecordKind()))
			continue
		}
		created, _ := rec.Stamps()
		if created.IsZero() {
			rec.Touch(im.now())
		}
		if err := rec.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s %s: %v", i+1, rec.RecordKind(), rec.RecordID(), err))
			continue
		}

		if opts.DryRun {
			result.Imported++
			result.ByKind[rec.RecordKind()]++
			continue
		}
		if err := im.st.Add(ctx, rec); err != nil {
			if errors.Is(err, apperr.ErrAlreadyExists) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		result.Imported++
		result.ByKind[rec.RecordKind()]++
	}

	entry := im.log.WithFields(logrus.Fields{
		"file":     path,
		"read":     result.Read,
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
		"dry_run":  opts.DryRun,
	})
	if len(result.Errors) > 0 {
		entry.Warn("legacy import finished with errors")
	} else {
		entry.Info("legacy import finished")
	}

	if !opts.DryRun && !opts.KeepFile {
		if err := os.Rename(path, path+ImportedSuffix); err != nil {
			return result, fmt.Errorf("failed to mark %s imported: %w", path, err)
		}
	}
	return result, nil
}

// ImportDir imports every *.jsonl file in dir in name order.
func (im *Importer) ImportDir(ctx context.Context, dir string, opts Options) (*Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	total := NewResult()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := im.ImportFile(ctx, path, opts)
		if err != nil {
			total.Errors = append(total.Errors, err.Error())
			if res == nil {
				continue
			}
		}
		total.Merge(res)
	}
	return total, nil
}
