package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.BindHost)
	assert.Equal(t, 7946, cfg.Server.TCPPort)
	assert.Equal(t, 10000, cfg.Server.MaxConnections)
	assert.Equal(t, "static", cfg.Auth.Mode)
	assert.False(t, cfg.DNS.Enabled)
	assert.Equal(t, "prism.db", cfg.Database.Path)
	assert.True(t, cfg.Admin.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PRISM_SERVER_TCP_PORT", "9999")
	t.Setenv("PRISM_DNS_ENABLED", "true")
	t.Setenv("PRISM_DNS_ZONE", "hosts.example.com")
	t.Setenv("PRISM_DNS_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.TCPPort)
	assert.True(t, cfg.DNS.Enabled)
	assert.Equal(t, "hosts.example.com", cfg.DNS.Zone)
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	t.Setenv("PRISM_SERVER_TCP_PORT", "70000")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsHTTPAuthWithoutIntrospectionURL(t *testing.T) {
	t.Setenv("PRISM_AUTH_MODE", "http")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsDNSEnabledWithoutZone(t *testing.T) {
	t.Setenv("PRISM_DNS_ENABLED", "true")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "prism-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("server:\n  tcp_port: 1234\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Server.TCPPort)
}
