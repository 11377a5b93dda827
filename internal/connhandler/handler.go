// Package connhandler implements the per-connection state machine of
// spec §4.E: START -> AWAIT_AUTH -> READY -> CLOSED, one goroutine per TCP
// connection, processing exactly one frame at a time.
package connhandler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/prism-dns/prism/internal/auth"
	"github.com/prism-dns/prism/internal/protocol"
	"github.com/prism-dns/prism/internal/registry"
)

// Reconciler is the subset of the DNS reconciler's public surface a
// connection handler needs: enqueueing a hostname for propagation.
type Reconciler interface {
	Enqueue(hostname string)
}

// Config bounds the lifecycle of a single connection, per spec §4.E.
type Config struct {
	// AuthDeadline bounds time from accept to a valid auth frame.
	AuthDeadline time.Duration
	// IdleDeadline bounds time between frames once authenticated.
	IdleDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthDeadline <= 0 {
		c.AuthDeadline = 10 * time.Second
	}
	if c.IdleDeadline <= 0 {
		c.IdleDeadline = 90 * time.Second
	}
	return c
}

// Handler processes frames for accepted connections against a shared
// registry, token verifier, and DNS reconciler.
type Handler struct {
	registry   *registry.Registry
	verifier   auth.Verifier
	reconciler Reconciler
	logger     *slog.Logger
	cfg        Config
}

// New builds a Handler. reconciler may be nil: DNS propagation is then
// skipped, which is valid when no DNS backend is configured (spec §4.C).
func New(reg *registry.Registry, verifier auth.Verifier, reconciler Reconciler, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{
		registry:   reg,
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

type connState int

const (
	stateAwaitAuth connState = iota
	stateReady
	stateClosed
)

// session holds the per-connection mutable state while conn is open.
// boundHostname enforces the one-hostname-per-connection invariant: the
// first successful register on a connection fixes it, and any later
// register for a different hostname is rejected rather than silently
// rebinding a different host onto someone else's session.
type session struct {
	ownerID       string
	boundHostname string
}

// Handle drives one connection end to end. It returns when the connection
// is closed, either by the peer, by a protocol violation, or by ctx
// cancellation (server shutdown).
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()
	reader := bufio.NewReader(conn)
	state := stateAwaitAuth
	sess := &session{}

	if h.logger != nil {
		h.logger.Debug("connection accepted", "conn_id", connID, "remote", remote)
		defer h.logger.Debug("connection closed", "conn_id", connID, "remote", remote)
	}

	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.AuthDeadline))

	for state != stateClosed {
		if ctx.Err() != nil {
			return
		}

		body, err := protocol.DecodeNext(reader)
		if err != nil {
			if h.logger != nil && !errors.Is(err, protocol.ErrIncompleteInput) {
				h.logger.Debug("connection read failed", "conn_id", connID, "remote", remote, "err", err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			h.reply(conn, protocol.Err(protocol.CodeBadRequest))
			return
		}

		switch state {
		case stateAwaitAuth:
			state = h.handleAuth(ctx, conn, sess, env.Action, body)
		case stateReady:
			state = h.handleReady(conn, sess, env.Action, body)
		}

		if state == stateReady {
			_ = conn.SetReadDeadline(time.Now().Add(h.cfg.IdleDeadline))
		}
	}
}

// handleAuth consumes the connection's first frame. Per spec §4.E/§6, the
// token may arrive either as a standalone action:"auth" frame, or folded
// into the first action:"register" frame's auth_token field; both are
// accepted here rather than just the former.
func (h *Handler) handleAuth(ctx context.Context, conn net.Conn, sess *session, action string, body []byte) connState {
	switch action {
	case "auth":
		var msg protocol.AuthMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.AuthToken == "" {
			h.reply(conn, protocol.Err(protocol.CodeBadRequest))
			return stateClosed
		}

		ownerID, err := h.verifier.Verify(ctx, msg.AuthToken)
		if err != nil {
			h.reply(conn, protocol.Err(protocol.CodeAuthFailed))
			return stateClosed
		}

		sess.ownerID = ownerID
		h.reply(conn, protocol.OK())
		return stateReady

	case "register":
		var msg protocol.RegisterMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.AuthToken == "" {
			h.reply(conn, protocol.Err(protocol.CodeBadRequest))
			return stateClosed
		}

		ownerID, err := h.verifier.Verify(ctx, msg.AuthToken)
		if err != nil {
			h.reply(conn, protocol.Err(protocol.CodeAuthFailed))
			return stateClosed
		}

		sess.ownerID = ownerID
		return h.handleRegisterMsg(conn, sess, msg)

	default:
		h.reply(conn, protocol.Err(protocol.CodeBadRequest))
		return stateClosed
	}
}

func (h *Handler) handleReady(conn net.Conn, sess *session, action string, body []byte) connState {
	switch action {
	case "register":
		return h.handleRegister(conn, sess, body)
	case "heartbeat":
		return h.handleHeartbeat(conn, sess, body)
	case "goodbye":
		h.reply(conn, protocol.OK())
		return stateClosed
	default:
		h.reply(conn, protocol.Err(protocol.CodeBadRequest))
		return stateClosed
	}
}

func (h *Handler) handleRegister(conn net.Conn, sess *session, body []byte) connState {
	var msg protocol.RegisterMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.Hostname == "" || msg.ClientIP == "" {
		h.reply(conn, protocol.Err(protocol.CodeBadRequest))
		return stateClosed
	}
	return h.handleRegisterMsg(conn, sess, msg)
}

// handleRegisterMsg applies an already-decoded register message, shared by
// the AWAIT_AUTH path (auth_token folded into the first register frame)
// and the READY path (a plain register frame on an authenticated session).
func (h *Handler) handleRegisterMsg(conn net.Conn, sess *session, msg protocol.RegisterMessage) connState {
	if msg.Hostname == "" || msg.ClientIP == "" {
		h.reply(conn, protocol.Err(protocol.CodeBadRequest))
		return stateClosed
	}

	if sess.boundHostname != "" && sess.boundHostname != msg.Hostname {
		h.reply(conn, protocol.Err(protocol.CodeForbidden))
		return stateClosed
	}

	ip := effectiveIP(conn.RemoteAddr(), msg.ClientIP)

	result, err := h.registry.UpsertOnRegistration(msg.Hostname, ip, sess.ownerID, time.Now())
	if err != nil {
		return h.replyRegistrationError(conn, err)
	}

	sess.boundHostname = msg.Hostname
	h.reply(conn, protocol.OK())

	if result.ShouldReconcile() && h.reconciler != nil {
		h.reconciler.Enqueue(msg.Hostname)
	}
	return stateReady
}

// effectiveIP implements spec §4.E's client_ip selection: use client_ip if
// it's a syntactically valid, non-loopback IP literal, else fall back to
// the socket's peer address.
func effectiveIP(remote net.Addr, clientIP string) string {
	if ip := net.ParseIP(clientIP); ip != nil && !ip.IsLoopback() {
		return clientIP
	}
	return remoteIPString(remote)
}

// remoteIPString strips the port from a net.Addr's string form, falling
// back to the raw string if it isn't host:port.
func remoteIPString(remote net.Addr) string {
	if remote == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		return remote.String()
	}
	return host
}

func (h *Handler) handleHeartbeat(conn net.Conn, sess *session, body []byte) connState {
	var msg protocol.HeartbeatMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.Hostname == "" {
		h.reply(conn, protocol.Err(protocol.CodeBadRequest))
		return stateClosed
	}

	if sess.boundHostname != "" && sess.boundHostname != msg.Hostname {
		h.reply(conn, protocol.Err(protocol.CodeForbidden))
		return stateClosed
	}

	_, err := h.registry.Touch(msg.Hostname, sess.ownerID, time.Now())
	if err != nil {
		return h.replyRegistrationError(conn, err)
	}

	sess.boundHostname = msg.Hostname
	h.reply(conn, protocol.OK())
	return stateReady
}

func (h *Handler) replyRegistrationError(conn net.Conn, err error) connState {
	switch {
	case errors.Is(err, registry.ErrOwnerMismatch):
		h.reply(conn, protocol.Err(protocol.CodeForbidden))
	case errors.Is(err, registry.ErrMalformedHostname):
		h.reply(conn, protocol.Err(protocol.CodeBadHost))
	case errors.Is(err, registry.ErrUnknownHost):
		h.reply(conn, protocol.Err(protocol.CodeBadHost))
	default:
		h.reply(conn, protocol.Err(protocol.CodeInternal))
	}
	return stateClosed
}

func (h *Handler) reply(conn net.Conn, resp protocol.Response) {
	body, err := protocol.Marshal(resp)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = protocol.WriteFrame(conn, body)
}
