// Package connectivity reports whether the remote store is reachable.
//
// The sync engine never probes the network itself; it asks a Provider. The
// CLI uses Static for one-shot commands and the daemon runs a Probe that
// pings the remote on an interval and notifies on transitions.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/logging"
)

// Provider answers whether the device is online.
type Provider interface {
	Online() bool
}

// Static is a fixed answer.
type Static bool

func (s Static) Online() bool { return bool(s) }

// Func adapts a function to Provider.
type Func func() bool

func (f Func) Online() bool { return f() }

// Pinger is the subset of the remote store a Probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe pings a remote on an interval and caches the answer.
type Probe struct {
	pinger   Pinger
	interval time.Duration
	log      logrus.FieldLogger

	online   atomic.Bool
	mu       sync.Mutex
	onChange []func(online bool)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbe creates a probe. It reports offline until the first ping.
func NewProbe(pinger Pinger, interval time.Duration, log logrus.FieldLogger) *Probe {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Probe{
		pinger:   pinger,
		interval: interval,
		log:      logging.For(log, "connectivity"),
	}
}

// Online returns the last observed state.
func (p *Probe) Online() bool {
	return p.online.Load()
}

// OnChange registers fn to run after every offline/online transition.
func (p *Probe) OnChange(fn func(online bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Check pings once, updates the cached state and fires callbacks on a
// transition. It returns the new state.
func (p *Probe) Check(ctx context.Context) bool {
	now := p.pinger.Ping(ctx) == nil
	prev := p.online.Swap(now)
	if prev != now {
		p.log.WithField("online", now).Info("connectivity changed")
		p.mu.Lock()
		callbacks := append([]func(bool){}, p.onChange...)
		p.mu.Unlock()
		for _, fn := range callbacks {
			fn(now)
		}
	}
	return now
}

// Start checks immediately and then on every interval until ctx is done or
// Stop is called.
func (p *Probe) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.Check(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Check(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (p *Probe) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
