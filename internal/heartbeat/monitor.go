// Package heartbeat implements the liveness timeout engine of spec §4.F:
// a background loop that periodically sweeps the registry for hosts that
// have gone quiet and flips them offline.
package heartbeat

import (
	"log/slog"
	"time"

	"github.com/prism-dns/prism/internal/registry"
)

// Reconciler is the subset of the DNS reconciler a Monitor needs.
type Reconciler interface {
	Enqueue(hostname string)
}

// Config controls the Monitor's sweep cadence and liveness threshold, per
// spec §4.F/§6: offline_threshold = heartbeat_interval * timeout_multiplier
// + grace_period, swept every check_interval.
type Config struct {
	// HeartbeatInterval is the expected cadence of ingest from a live agent.
	HeartbeatInterval time.Duration
	// TimeoutMultiplier scales HeartbeatInterval into the base timeout.
	TimeoutMultiplier int
	// GracePeriod is added on top of the scaled timeout.
	GracePeriod time.Duration
	// CheckInterval is how often the registry is swept for staleness.
	CheckInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60 * time.Second
	}
	if c.TimeoutMultiplier <= 0 {
		c.TimeoutMultiplier = 2
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 30 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	return c
}

// threshold is how long a host may go unheard-from before it is marked
// offline: a host is stale if now - last_seen > threshold.
func (c Config) threshold() time.Duration {
	return time.Duration(c.TimeoutMultiplier)*c.HeartbeatInterval + c.GracePeriod
}

// Monitor runs the periodic sweep in its own goroutine until Stop is called.
type Monitor struct {
	registry   *registry.Registry
	reconciler Reconciler
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Monitor. reconciler may be nil when no DNS backend is
// configured, in which case stale hosts are still marked offline but no
// DNS removal is enqueued.
func New(reg *registry.Registry, reconciler Reconciler, logger *slog.Logger, cfg Config) *Monitor {
	return &Monitor{
		registry:   reg,
		reconciler: reconciler,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. It blocks; call it in its
// own goroutine.
func (m *Monitor) Start() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// Stop signals the loop to exit and waits for it to do so.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) sweep() {
	threshold := m.now().Add(-m.cfg.threshold())
	transitioned := m.registry.MarkOfflineIfStale(threshold)
	if len(transitioned) == 0 {
		return
	}

	if m.logger != nil {
		m.logger.Info("hosts went offline", "count", len(transitioned))
	}

	if m.reconciler == nil {
		return
	}
	for _, hostname := range transitioned {
		m.reconciler.Enqueue(hostname)
	}
}
