package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/prism-dns/prism/internal/api"
	"github.com/prism-dns/prism/internal/auth"
	"github.com/prism-dns/prism/internal/config"
	"github.com/prism-dns/prism/internal/connhandler"
	"github.com/prism-dns/prism/internal/database"
	"github.com/prism-dns/prism/internal/dnsbackend"
	"github.com/prism-dns/prism/internal/heartbeat"
	"github.com/prism-dns/prism/internal/helpers"
	"github.com/prism-dns/prism/internal/reconciler"
	"github.com/prism-dns/prism/internal/registry"
)

// Runner orchestrates Prism's startup, component wiring, and graceful
// shutdown: the host registry, its SQLite store, the token verifier, the
// DNS backend and reconciler, the heartbeat monitor, the agent-facing TCP
// listener, and the admin ops HTTP server.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run wires and starts every component described by cfg, then blocks until
// SIGINT/SIGTERM or an unrecoverable startup error.
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg, err := registry.New(db, r.logger)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	verifier, err := r.buildVerifier(cfg)
	if err != nil {
		return fmt.Errorf("build token verifier: %w", err)
	}

	backend, err := r.buildDNSBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build dns backend: %w", err)
	}

	rec := reconciler.New(reg, backend, r.logger, reconciler.Config{
		Zone:           cfg.DNS.Zone,
		RolloutPercent: cfg.DNS.RolloutPercent,
	})
	recCtx, recCancel := context.WithCancel(ctx)
	defer recCancel()
	go rec.Run(recCtx, cfg.DNS.Workers)
	defer rec.Stop()

	mon := heartbeat.New(reg, rec, r.logger, heartbeat.Config{
		HeartbeatInterval: mustParseDuration(cfg.Heartbeat.Interval, 60*time.Second),
		TimeoutMultiplier: cfg.Heartbeat.TimeoutMultiplier,
		GracePeriod:       mustParseDuration(cfg.Heartbeat.GracePeriod, 30*time.Second),
		CheckInterval:     mustParseDuration(cfg.Heartbeat.CheckInterval, 30*time.Second),
	})
	go mon.Start()
	defer mon.Stop()

	connCfg := connhandler.Config{
		AuthDeadline: mustParseDuration(cfg.Server.AuthDeadline, 10*time.Second),
		IdleDeadline: mustParseDuration(cfg.Server.IdleDeadline, 90*time.Second),
	}
	handler := connhandler.New(reg, verifier, rec, r.logger, connCfg)

	listener := &Listener{
		Logger:         r.logger,
		Handler:        handler,
		MaxConnections: cfg.Server.MaxConnections,
		Limiter:        NewRateLimiterFromEnv(),
	}

	addr := net.JoinHostPort(cfg.Server.BindHost, strconv.Itoa(cfg.Server.TCPPort))
	r.logStartup(cfg, addr)

	errCh := make(chan error, 2)
	go func() { errCh <- listener.Run(ctx, addr) }()

	var adminSrv *api.Server
	if cfg.Admin.Enabled {
		adminSrv = api.New(cfg, r.logger, reg, db)
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}

	return listener.Stop(5 * time.Second)
}

func (r *Runner) buildVerifier(cfg *config.Config) (auth.Verifier, error) {
	switch cfg.Auth.Mode {
	case "http":
		return auth.NewHTTPVerifier(auth.HTTPVerifierConfig{
			IntrospectionURL: cfg.Auth.IntrospectionURL,
			ClientID:         cfg.Auth.ClientID,
			ClientSecret:     cfg.Auth.ClientSecret,
			TokenURL:         cfg.Auth.TokenURL,
		}), nil
	default:
		return auth.NewStaticVerifier(cfg.Auth.StaticTokens), nil
	}
}

func (r *Runner) buildDNSBackend(ctx context.Context, cfg *config.Config) (dnsbackend.Backend, error) {
	if !cfg.DNS.Enabled {
		return nil, nil
	}

	var (
		backend dnsbackend.Backend
		err     error
	)

	switch cfg.DNS.Backend {
	case "memory":
		return dnsbackend.NewMemoryBackend(cfg.DNS.Zone), nil
	case "powerdns":
		backend = dnsbackend.NewPowerDNSBackend(dnsbackend.PowerDNSConfig{
			BaseURL: cfg.DNS.PowerDNS.BaseURL,
			APIKey:  cfg.DNS.PowerDNS.APIKey,
			TTL:     helpers.ClampIntToUint32(cfg.DNS.RecordTTL),
		})
	case "route53":
		sess, sessErr := session.NewSession()
		if sessErr != nil {
			return nil, fmt.Errorf("aws session: %w", sessErr)
		}
		backend = dnsbackend.NewRoute53Backend(sess, dnsbackend.Route53Config{
			HostedZoneIDs: map[string]string{cfg.DNS.Zone: cfg.DNS.Route53.HostedZoneID},
			TTL:           int64(helpers.ClampInt(cfg.DNS.RecordTTL, 0, 604800)),
		})
	default:
		return nil, fmt.Errorf("unknown dns.backend %q", cfg.DNS.Backend)
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
	defer probeCancel()

	if _, err = backend.ZoneExists(probeCtx, cfg.DNS.Zone); err != nil {
		if !cfg.DNS.FallbackToMock {
			return nil, fmt.Errorf("dns backend unreachable at startup: %w", err)
		}
		if r.logger != nil {
			r.logger.Warn("dns backend unreachable at startup, falling back to in-memory backend",
				"backend", cfg.DNS.Backend, "error", err)
		}
		return dnsbackend.NewMemoryBackend(cfg.DNS.Zone), nil
	}

	return backend, nil
}

func (r *Runner) logStartup(cfg *config.Config, addr string) {
	if r.logger != nil {
		r.logger.Info("prism listening",
			"addr", addr,
			"max_connections", cfg.Server.MaxConnections,
			"dns_enabled", cfg.DNS.Enabled,
			"dns_backend", cfg.DNS.Backend,
			"auth_mode", cfg.Auth.Mode,
			"admin_enabled", cfg.Admin.Enabled,
		)
	}
}

func mustParseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
