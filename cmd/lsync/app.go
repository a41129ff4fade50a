package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ledgerline/ledgersync/internal/blob"
	"github.com/ledgerline/ledgersync/internal/connectivity"
	"github.com/ledgerline/ledgersync/internal/ids"
	"github.com/ledgerline/ledgersync/internal/session"
	"github.com/ledgerline/ledgersync/internal/store"
	"github.com/ledgerline/ledgersync/internal/syncer"
	"github.com/ledgerline/ledgersync/internal/writepath"
)

// probeTimeout bounds the connectivity check made at start-up.
const probeTimeout = 5 * time.Second

// app holds the wired components for one command invocation.
type app struct {
	local  *store.Local
	remote *store.Remote
	probe  *connectivity.Probe
	syncer syncer.Syncer
	writes *writepath.Service
}

// openApp opens both stores and checks connectivity once. An unreachable
// backend is not an error; the probe reports offline and writes stay local.
func openApp(ctx context.Context, observers ...syncer.Observer) (*app, error) {
	local, err := store.OpenLocalContext(ctx, cfg.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	remoteCfg, err := cfg.StoreRemote()
	if err != nil {
		_ = local.Close()
		return nil, err
	}
	remote, err := store.DialRemote(remoteCfg)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	probe := connectivity.NewProbe(remote, cfg.Remote.ProbeInterval, log)
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	online := probe.Check(pctx)
	cancel()
	if online {
		if err := remote.InitSchemaContext(ctx); err != nil {
			_ = remote.Close()
			_ = local.Close()
			return nil, fmt.Errorf("failed to prepare remote schema: %w", err)
		}
	} else {
		log.WithField("driver", remoteCfg.Dialect).Warn("remote unreachable, working offline")
		// Registered before any other callback so the tables exist by the
		// time a reconnect sync runs.
		var once sync.Once
		probe.OnChange(func(online bool) {
			if !online {
				return
			}
			once.Do(func() {
				if err := remote.InitSchemaContext(context.Background()); err != nil {
					log.WithError(err).Warn("failed to prepare remote schema")
				}
			})
		})
	}

	gen, err := ids.New(cfg.IDs.Format)
	if err != nil {
		_ = remote.Close()
		_ = local.Close()
		return nil, err
	}
	uploader, err := newUploader(ctx)
	if err != nil {
		_ = remote.Close()
		_ = local.Close()
		return nil, err
	}

	sc := syncer.DefaultConfig()
	sc.Logger = log
	sc.Parallelism = cfg.Sync.Parallelism
	sc.AutoFull = cfg.Sync.AutoFull
	sc.FullSyncDelay = cfg.Sync.FullSyncDelay
	sc.Observers = observers

	return &app{
		local:  local,
		remote: remote,
		probe:  probe,
		syncer: syncer.New(local, remote, probe, sc),
		writes: writepath.New(local, remote, probe, writepath.Config{
			Logger:  log,
			IDs:     gen,
			Session: session.Static(cfg.OwnerID),
			Blob:    uploader,
		}),
	}, nil
}

// newUploader returns the attachment uploader. S3 uploads fall back to the
// local cache directory when they fail.
func newUploader(ctx context.Context) (blob.Uploader, error) {
	cache := blob.Local{Dir: cfg.Blob.CacheDir}
	if cfg.Blob.Provider != "s3" {
		return cache, nil
	}
	s3, err := blob.NewS3(ctx, cfg.S3())
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3: %w", err)
	}
	return blob.Fallback{Primary: s3, Local: cache, Log: log}, nil
}

// close waits for pending mirrors and releases everything.
func (a *app) close() {
	a.writes.Wait()
	a.syncer.Close()
	a.probe.Stop()
	if err := a.remote.Close(); err != nil {
		log.WithError(err).Warn("failed to close remote store")
	}
	if err := a.local.Close(); err != nil {
		log.WithError(err).Warn("failed to close local store")
	}
}

// mustOpenApp is openApp for command handlers.
func mustOpenApp(ctx context.Context, observers ...syncer.Observer) *app {
	a, err := openApp(ctx, observers...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

// requireOwner exits unless an owner is configured.
func requireOwner() string {
	if cfg.OwnerID == "" {
		fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner_id, LSYNC_OWNER_ID or --owner)\n")
		os.Exit(1)
	}
	return cfg.OwnerID
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
