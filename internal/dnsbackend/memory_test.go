package dnsbackend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRType(t *testing.T) {
	assert.Equal(t, "A", rrType("10.0.0.5"))
	assert.Equal(t, "AAAA", rrType("2001:db8::1"))
	assert.Equal(t, "A", rrType("not-an-ip"))
}

func TestMemoryBackend_UpsertAndDeleteIPv6(t *testing.T) {
	b := NewMemoryBackend("hosts.example.com")
	ctx := context.Background()

	recordID, err := b.UpsertA(ctx, "hosts.example.com", "v6.example.com", "2001:db8::1")
	require.NoError(t, err)
	assert.Contains(t, recordID, "AAAA")

	ip, ok := b.Lookup("hosts.example.com", "v6.example.com")
	require.True(t, ok)
	assert.Equal(t, "2001:db8::1", ip)

	require.NoError(t, b.DeleteA(ctx, "hosts.example.com", "v6.example.com", "2001:db8::1", recordID))
	_, ok = b.Lookup("hosts.example.com", "v6.example.com")
	assert.False(t, ok)
}

func TestMemoryBackend_UpsertZoneNotFound(t *testing.T) {
	b := NewMemoryBackend()
	_, err := b.UpsertA(context.Background(), "absent.example.com", "host", "10.0.0.1")
	assert.ErrorIs(t, err, ErrZoneNotFound)
}
