package connhandler

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/prism-dns/prism/internal/auth"
	"github.com/prism-dns/prism/internal/protocol"
	"github.com/prism-dns/prism/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	enqueued []string
}

func (f *fakeReconciler) Enqueue(hostname string) { f.enqueued = append(f.enqueued, hostname) }

func newHarness(t *testing.T) (*Handler, *fakeReconciler, net.Conn, net.Conn) {
	t.Helper()
	reg, err := registry.New(nil, nil)
	require.NoError(t, err)
	verifier := auth.NewStaticVerifier(map[string]string{"tok-a": "owner-a"})
	recon := &fakeReconciler{}
	h := New(reg, verifier, recon, nil, Config{AuthDeadline: time.Second, IdleDeadline: time.Second})

	server, client := net.Pipe()
	return h, recon, server, client
}

func send(t *testing.T, conn net.Conn, v any) {
	t.Helper()
	body, err := protocol.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(conn, body))
}

func TestHandler_AuthThenRegisterThenHeartbeat(t *testing.T) {
	h, recon, server, client := newHarness(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Handle(ctx, server)
		close(done)
	}()

	reader := bufio.NewReader(client)

	send(t, client, protocol.AuthMessage{Action: "auth", AuthToken: "tok-a"})
	resp := readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	send(t, client, protocol.RegisterMessage{Action: "register", Hostname: "box1.example", ClientIP: "10.0.0.1"})
	resp = readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"box1.example"}, recon.enqueued)

	send(t, client, protocol.HeartbeatMessage{Action: "heartbeat", Hostname: "box1.example"})
	resp = readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	send(t, client, protocol.GoodbyeMessage{Action: "goodbye"})
	resp = readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	<-done
}

func TestHandler_RejectsBadToken(t *testing.T) {
	h, _, server, client := newHarness(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Handle(ctx, server)
		close(done)
	}()

	reader := bufio.NewReader(client)
	send(t, client, protocol.AuthMessage{Action: "auth", AuthToken: "nope"})
	resp := readResponse(t, reader)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, protocol.CodeAuthFailed, resp.Code)

	<-done
}

func TestHandler_RejectsSecondHostnameOnSameConnection(t *testing.T) {
	h, _, server, client := newHarness(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Handle(ctx, server)
		close(done)
	}()

	reader := bufio.NewReader(client)
	send(t, client, protocol.AuthMessage{Action: "auth", AuthToken: "tok-a"})
	_ = readResponse(t, reader)

	send(t, client, protocol.RegisterMessage{Action: "register", Hostname: "box1.example", ClientIP: "10.0.0.1"})
	resp := readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	send(t, client, protocol.RegisterMessage{Action: "register", Hostname: "box2.example", ClientIP: "10.0.0.2"})
	resp = readResponse(t, reader)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, protocol.CodeForbidden, resp.Code)

	<-done
}

func TestHandler_AuthTokenFoldedIntoFirstRegisterFrame(t *testing.T) {
	h, recon, server, client := newHarness(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Handle(ctx, server)
		close(done)
	}()

	reader := bufio.NewReader(client)

	send(t, client, protocol.RegisterMessage{
		Action:    "register",
		Hostname:  "box1.example",
		ClientIP:  "10.0.0.1",
		AuthToken: "tok-a",
	})
	resp := readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"box1.example"}, recon.enqueued)

	send(t, client, protocol.GoodbyeMessage{Action: "goodbye"})
	resp = readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	<-done
}

func TestHandler_AuthTokenFoldedIntoFirstRegisterFrameRejectsBadToken(t *testing.T) {
	h, _, server, client := newHarness(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Handle(ctx, server)
		close(done)
	}()

	reader := bufio.NewReader(client)
	send(t, client, protocol.RegisterMessage{
		Action:    "register",
		Hostname:  "box1.example",
		ClientIP:  "10.0.0.1",
		AuthToken: "nope",
	})
	resp := readResponse(t, reader)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, protocol.CodeAuthFailed, resp.Code)

	<-done
}

func TestHandler_EffectiveIPFallsBackToPeerAddrWhenClientIPIsInvalid(t *testing.T) {
	reg, err := registry.New(nil, nil)
	require.NoError(t, err)
	verifier := auth.NewStaticVerifier(map[string]string{"tok-a": "owner-a"})
	recon := &fakeReconciler{}
	h := New(reg, verifier, recon, nil, Config{AuthDeadline: time.Second, IdleDeadline: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		server, err := ln.Accept()
		require.NoError(t, err)
		h.Handle(ctx, server)
		close(done)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	reader := bufio.NewReader(client)
	send(t, client, protocol.RegisterMessage{
		Action:    "register",
		Hostname:  "loopback.example",
		ClientIP:  "not-an-ip",
		AuthToken: "tok-a",
	})
	resp := readResponse(t, reader)
	assert.Equal(t, "ok", resp.Status)

	rec, ok := reg.Get("loopback.example")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", rec.CurrentIP)

	send(t, client, protocol.GoodbyeMessage{Action: "goodbye"})
	_ = readResponse(t, reader)
	<-done
}

func readResponse(t *testing.T, reader *bufio.Reader) protocol.Response {
	t.Helper()
	body, err := protocol.DecodeNext(reader)
	require.NoError(t, err)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}
