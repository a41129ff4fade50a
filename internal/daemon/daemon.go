// Package daemon keeps one owner's stores converged in the background.
//
// The daemon:
// 1. Imports the configured legacy export, then any exports already waiting
//    in the drop directory
// 2. Runs SyncOnConnect when the device is online at start-up and on every
//    offline to online transition
// 3. Runs a full sync on a fixed interval while online
// 4. Watches the drop directory and imports new exports with debouncing
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/legacy"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/syncer"
)

// Connectivity is the online signal the daemon follows. connectivity.Probe
// satisfies it.
type Connectivity interface {
	Online() bool
	OnChange(fn func(online bool))
}

// Config holds configuration for the daemon.
type Config struct {
	// Owner is the account whose records are synced.
	Owner string

	// SyncInterval is how often a full sync runs while online. Zero
	// disables periodic syncs.
	SyncInterval time.Duration

	// DebounceInterval is how long a dropped export must stay unchanged
	// before it is imported. This batches the writes of a copy together.
	DebounceInterval time.Duration

	// LegacyPath is a single export imported once before the first sync.
	LegacyPath string

	// ImportDir is the drop directory for further exports. Empty disables
	// watching.
	ImportDir string

	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
	}
}

// Daemon runs syncs and imports until stopped.
type Daemon struct {
	syncer   syncer.Syncer
	conn     Connectivity
	importer *legacy.Importer
	config   *Config
	log      logrus.FieldLogger

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu sync.Mutex

	reconnect chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon. Use Start to run it.
func New(s syncer.Syncer, conn Connectivity, importer *legacy.Importer, config *Config) (*Daemon, error) {
	if s == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if conn == nil {
		return nil, fmt.Errorf("connectivity cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if (config.LegacyPath != "" || config.ImportDir != "") && importer == nil {
		return nil, fmt.Errorf("importer is required when legacy imports are configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		syncer:      s,
		conn:        conn,
		importer:    importer,
		config:      config,
		log:         logging.For(config.Logger, "daemon"),
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		reconnect:   make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation. It blocks until ctx is cancelled or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.WithField("owner", d.config.Owner).Info("starting daemon")

	if err := d.importStartup(ctx); err != nil {
		_ = d.Stop()
		return fmt.Errorf("initial import failed: %w", err)
	}

	d.conn.OnChange(func(online bool) {
		if !online {
			return
		}
		select {
		case d.reconnect <- struct{}{}:
		default:
		}
	})
	if d.conn.Online() {
		d.syncOnConnect()
	} else {
		d.log.Info("offline at start, waiting for connectivity")
	}

	if d.config.ImportDir != "" {
		if err := d.watcher.Add(d.config.ImportDir); err != nil {
			_ = d.Stop()
			return fmt.Errorf("failed to watch import directory: %w", err)
		}
		d.log.WithField("dir", d.config.ImportDir).Info("watching for exports")
		d.wg.Add(2)
		go d.watchFileEvents()
		go d.processChangeQueue()
	}

	d.wg.Add(1)
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.log.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.log.Info("stopping daemon")
		d.cancel()
		if err := d.watcher.Close(); err != nil {
			d.log.WithError(err).Warn("error closing watcher")
		}
		d.wg.Wait()
		d.log.Info("daemon stopped")
	})
	return nil
}

// importStartup imports the legacy export and anything already waiting in
// the drop directory. Both run before the first sync so imported records
// ride along with it.
func (d *Daemon) importStartup(ctx context.Context) error {
	if path := d.config.LegacyPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			res, err := d.importer.ImportFile(ctx, path, legacy.Options{Owner: d.config.Owner})
			if err != nil {
				return err
			}
			d.log.WithFields(logrus.Fields{"file": path, "imported": res.Imported}).Info("legacy export imported")
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if dir := d.config.ImportDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create import directory: %w", err)
		}
		if _, err := d.importer.ImportDir(ctx, dir, legacy.Options{Owner: d.config.Owner}); err != nil {
			return err
		}
	}
	return nil
}

// syncLoop runs SyncOnConnect on reconnect and FullSync on every tick.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	var tick <-chan time.Time
	if d.config.SyncInterval > 0 {
		ticker := time.NewTicker(d.config.SyncInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-d.reconnect:
			d.log.Info("connectivity restored")
			d.syncOnConnect()

		case <-tick:
			if !d.conn.Online() {
				continue
			}
			if _, err := d.syncer.FullSync(d.ctx, d.config.Owner); err != nil {
				d.log.WithError(err).Warn("periodic sync skipped")
			}
		}
	}
}

func (d *Daemon) syncOnConnect() {
	if _, err := d.syncer.SyncOnConnect(d.ctx, d.config.Owner); err != nil {
		d.log.WithError(err).Warn("sync on connect skipped")
	}
}

// watchFileEvents monitors the drop directory and queues exports.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".jsonl" {
				continue
			}
			d.log.WithFields(logrus.Fields{"op": event.Op.String(), "file": event.Name}).Debug("file event")
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.WithError(err).Warn("watcher error")
		}
	}
}

// queueChange records the latest event time for path.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue imports queued exports once they settle.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// settled removes and returns the queued paths whose last event is older
// than the debounce interval.
func (d *Daemon) settled(now time.Time) []string {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	return ready
}

// processPendingChanges imports settled exports and schedules a full sync
// when anything new landed.
func (d *Daemon) processPendingChanges() {
	imported := 0
	for _, path := range d.settled(time.Now()) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		res, err := d.importer.ImportFile(d.ctx, path, legacy.Options{Owner: d.config.Owner})
		if err != nil {
			d.log.WithError(err).WithField("file", path).Warn("import failed")
			continue
		}
		imported += res.Imported
	}

	if imported > 0 && d.conn.Online() {
		d.syncer.ScheduleFullSync(d.config.Owner, d.config.DebounceInterval)
	}
}
