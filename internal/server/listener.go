// Package server hosts the agent-facing TCP listener (spec §4.H): the
// entry point that accepts registration/heartbeat connections and hands
// each one to internal/connhandler.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/prism-dns/prism/internal/connhandler"
)

// Listener accepts agent connections and dispatches them to a Handler,
// admitting at most MaxConnections concurrently across all listening
// sockets.
//
// Goroutine lifecycle: Run spawns one accept-loop goroutine per listening
// socket (one per CPU core, via SO_REUSEPORT) plus one handler goroutine
// per accepted connection. All exit when ctx is cancelled or Stop is
// called.
type Listener struct {
	Logger         *slog.Logger
	Handler        *connhandler.Handler
	MaxConnections int
	Limiter        *RateLimiter // optional connection-admission rate limiter

	listeners []net.Listener
	wg        sync.WaitGroup
	active    atomic.Int64
}

// Run starts one listening socket per CPU core, all bound to addr via
// SO_REUSEPORT, and blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, addr string) error {
	socketCount := runtime.NumCPU()
	l.listeners = make([]net.Listener, 0, socketCount)

	for range socketCount {
		ln, err := listenTCPReusePort(ctx, addr)
		if err != nil {
			for _, existing := range l.listeners {
				_ = existing.Close()
			}
			return err
		}
		l.listeners = append(l.listeners, ln)

		listener := ln
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.acceptLoop(ctx, listener)
		}()
	}

	<-ctx.Done()
	return l.Stop(5 * time.Second)
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			return
		}

		remoteIP := remoteIPString(conn.RemoteAddr())

		if l.Limiter != nil && !l.Limiter.Allow(remoteIP) {
			if l.Logger != nil {
				l.Logger.WarnContext(ctx, "connection rate limited", "ip", remoteIP)
			}
			_ = conn.Close()
			continue
		}

		if l.MaxConnections > 0 && l.active.Load() >= int64(l.MaxConnections) {
			if l.Logger != nil {
				l.Logger.WarnContext(ctx, "connection admission limit reached", "ip", remoteIP, "max", l.MaxConnections)
			}
			_ = conn.Close()
			continue
		}

		l.active.Add(1)
		c := conn
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.active.Add(-1)
			defer c.Close()
			l.Handler.Handle(ctx, c)
		}()
	}
}

// Stop closes all listening sockets and waits up to timeout for in-flight
// connections to finish.
func (l *Listener) Stop(timeout time.Duration) error {
	for _, ln := range l.listeners {
		_ = ln.Close()
	}

	if timeout <= 0 {
		l.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("server: timeout waiting for connections to close")
	}
}

// ActiveConnections reports the current admitted-connection count.
func (l *Listener) ActiveConnections() int64 {
	return l.active.Load()
}

func listenTCPReusePort(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

func remoteIPString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err == nil {
		return host
	}
	return addr.String()
}
