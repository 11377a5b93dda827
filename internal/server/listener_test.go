package server

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestListener_remoteIPString(t *testing.T) {
	tests := []struct {
		name     string
		addr     net.Addr
		expected string
	}{
		{
			name:     "TCP address",
			addr:     &net.TCPAddr{IP: net.ParseIP("192.168.1.1"), Port: 12345},
			expected: "192.168.1.1",
		},
		{
			name:     "IPv6 TCP address",
			addr:     &net.TCPAddr{IP: net.ParseIP("::1"), Port: 12345},
			expected: "::1",
		},
		{
			name:     "nil address",
			addr:     nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remoteIPString(tt.addr)
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestListener_Stop_NoListener(t *testing.T) {
	l := &Listener{}
	if err := l.Stop(100 * time.Millisecond); err != nil {
		t.Errorf("Stop with no listener should not error, got %v", err)
	}
}

func TestListener_Stop_ZeroTimeout(t *testing.T) {
	l := &Listener{}
	if err := l.Stop(0); err != nil {
		t.Errorf("Stop with zero timeout should not error, got %v", err)
	}
}

func TestListener_Run_InvalidAddress(t *testing.T) {
	l := &Listener{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Run(ctx, "invalid:address:format::"); err == nil {
		t.Error("expected error for invalid address")
	}
}
