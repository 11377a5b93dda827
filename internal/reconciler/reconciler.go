// Package reconciler implements the DNS Reconciler of spec §4.G: it drains
// a queue of hostnames needing DNS propagation, serializes work per
// hostname so intents never race each other, collapses adjacent duplicate
// intents for the same hostname, and retries backend failures with
// exponential backoff.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prism-dns/prism/internal/dnsbackend"
	"github.com/prism-dns/prism/internal/registry"
)

// Config controls retry behavior and DNS zone/rollout placement.
type Config struct {
	Zone string

	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int

	// QueueSize bounds the pending-intent channel. When it is full,
	// Enqueue drops the new intent rather than blocking the caller (the
	// heartbeat monitor and connection handlers must never stall on a
	// slow DNS backend).
	QueueSize int

	// RolloutPercent gates what fraction of hostnames get DNS propagation
	// at all, per spec §4.G's gradual-rollout flag: 0 disables entirely,
	// 100 enables for everyone. Selection is by a stable hash of the
	// hostname so a given host's membership doesn't flap between sweeps.
	RolloutPercent int
}

func (c Config) withDefaults() Config {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	return c
}

// Reconciler owns the intent queue and the goroutines that drain it.
type Reconciler struct {
	registry *registry.Registry
	backend  dnsbackend.Backend
	logger   *slog.Logger
	cfg      Config

	mu      sync.Mutex
	pending map[string]struct{} // hostnames currently queued, for dedup
	queue   chan string

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New builds a Reconciler. backend may be nil, in which case Enqueue is a
// no-op: the registration engine runs fine with DNS propagation disabled.
func New(reg *registry.Registry, backend dnsbackend.Backend, logger *slog.Logger, cfg Config) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		registry: reg,
		backend:  backend,
		logger:   logger,
		cfg:      cfg,
		pending:  make(map[string]struct{}),
		queue:    make(chan string, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Enqueue schedules hostname for reconciliation. A hostname already queued
// is not queued twice (spec §4.G "adjacent duplicate intents collapse").
// A hostname outside the rollout percentage is skipped entirely.
func (r *Reconciler) Enqueue(hostname string) {
	if r.backend == nil {
		return
	}
	if !inRollout(hostname, r.cfg.RolloutPercent) {
		return
	}

	r.mu.Lock()
	if _, exists := r.pending[hostname]; exists {
		r.mu.Unlock()
		return
	}
	r.pending[hostname] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- hostname:
	default:
		// Queue full: drop the intent and clear its pending marker so a
		// later Enqueue for the same host isn't permanently swallowed.
		r.mu.Lock()
		delete(r.pending, hostname)
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.Warn("reconciler queue full, dropping intent", "hostname", hostname)
		}
	}
}

// Run drains the queue with numWorkers concurrent workers until ctx is
// cancelled. Workers only ever process distinct hostnames concurrently:
// a hostname is removed from r.pending only once its reconcile attempt
// (success, permanent failure, or exhausted retries) completes, so two
// goroutines never reconcile the same hostname at once.
func (r *Reconciler) Run(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.wg.Wait()
}

// Stop signals all workers to exit once the current intent finishes.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case hostname := <-r.queue:
			r.reconcileWithRetry(ctx, hostname)
			r.mu.Lock()
			delete(r.pending, hostname)
			r.mu.Unlock()
		}
	}
}

func (r *Reconciler) reconcileWithRetry(ctx context.Context, hostname string) {
	backoff := r.cfg.BaseBackoff
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.reconcileOnce(ctx, hostname)
		if err == nil {
			return
		}

		if !isTransient(err) {
			if r.logger != nil {
				r.logger.Error("dns reconcile failed permanently", "hostname", hostname, "err", err)
			}
			r.registry.RecordDNSSync(hostname, registry.DNSSyncFailed, r.cfg.Zone, "")
			return
		}

		if attempt == r.cfg.MaxAttempts {
			if r.logger != nil {
				r.logger.Error("dns reconcile exhausted retries", "hostname", hostname, "attempts", attempt)
			}
			r.registry.RecordDNSSync(hostname, registry.DNSSyncFailed, r.cfg.Zone, "")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context, hostname string) error {
	rec, ok := r.registry.Get(hostname)
	if !ok {
		// Host was deleted from the registry between enqueue and this
		// attempt (e.g. expired and purged); nothing left to reconcile.
		return nil
	}

	exists, err := r.backend.ZoneExists(ctx, r.cfg.Zone)
	if err != nil {
		return err
	}
	if !exists {
		// Per spec, an absent zone is a permanent condition for this
		// intent: fail without retrying until the next enqueue.
		if r.logger != nil {
			r.logger.Error("dns zone not found", "hostname", hostname, "zone", r.cfg.Zone)
		}
		r.registry.RecordDNSSync(hostname, registry.DNSSyncFailed, r.cfg.Zone, "")
		return nil
	}

	if rec.Status == registry.StatusOffline {
		err := r.backend.DeleteA(ctx, r.cfg.Zone, hostname, rec.CurrentIP, rec.DNSRecordID)
		if err != nil {
			return err
		}
		r.registry.RecordDNSSync(hostname, registry.DNSSyncDisabled, r.cfg.Zone, "")
		return nil
	}

	recordID, err := r.backend.UpsertA(ctx, r.cfg.Zone, hostname, rec.CurrentIP)
	if err != nil {
		return err
	}
	r.registry.RecordDNSSync(hostname, registry.DNSSyncSynced, r.cfg.Zone, recordID)
	return nil
}

func isTransient(err error) bool {
	_, ok := err.(*dnsbackend.TransientError)
	return ok
}
