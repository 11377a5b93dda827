// Package config provides configuration loading for Prism using Viper.
// Configuration is loaded from YAML files with automatic environment
// variable binding.
//
// Environment variables use the PRISM_ prefix and underscore-separated keys:
//   - PRISM_SERVER_BIND_HOST -> server.bind_host
//   - PRISM_SERVER_TCP_PORT  -> server.tcp_port
//   - PRISM_DNS_ENABLED      -> dns.enabled
package config

import (
	"os"
	"strings"
)

// ServerConfig contains the agent-facing TCP listener settings (spec §4.H).
type ServerConfig struct {
	BindHost       string `yaml:"bind_host"       mapstructure:"bind_host"`
	TCPPort        int    `yaml:"tcp_port"        mapstructure:"tcp_port"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	AuthDeadline   string `yaml:"auth_deadline"   mapstructure:"auth_deadline"`
	IdleDeadline   string `yaml:"idle_deadline"   mapstructure:"idle_deadline"`
}

// HeartbeatConfig controls the liveness timeout engine (spec §4.F). The
// offline threshold is derived, not stored directly: threshold = now -
// (heartbeat_interval * timeout_multiplier + grace_period), swept every
// check_interval.
type HeartbeatConfig struct {
	Interval          string `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	CheckInterval     string `yaml:"check_interval"     mapstructure:"check_interval"`
	TimeoutMultiplier int    `yaml:"timeout_multiplier" mapstructure:"timeout_multiplier"`
	GracePeriod       string `yaml:"grace_period"       mapstructure:"grace_period"`
}

// PowerDNSConfig holds PowerDNS Authoritative Server API settings.
type PowerDNSConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key"  mapstructure:"api_key"`
}

// Route53Config holds AWS Route 53 hosted-zone settings.
type Route53Config struct {
	HostedZoneID string `yaml:"hosted_zone_id" mapstructure:"hosted_zone_id"`
}

// DNSConfig controls DNS propagation (spec §4.C/§4.G).
type DNSConfig struct {
	Enabled        bool   `yaml:"enabled"         mapstructure:"enabled"`
	Backend        string `yaml:"backend"         mapstructure:"backend"` // "memory", "powerdns", "route53"
	Zone           string `yaml:"zone"            mapstructure:"zone"`
	RolloutPercent int    `yaml:"rollout_percent" mapstructure:"rollout_percent"`
	RecordTTL      int    `yaml:"record_ttl"      mapstructure:"record_ttl"`
	Workers        int    `yaml:"workers"         mapstructure:"workers"`
	// FallbackToMock substitutes an in-memory DNS Backend if the
	// configured real backend is unreachable at startup, per spec §6,
	// rather than failing startup outright.
	FallbackToMock bool `yaml:"fallback_to_mock" mapstructure:"fallback_to_mock"`

	PowerDNS PowerDNSConfig `yaml:"powerdns" mapstructure:"powerdns"`
	Route53  Route53Config  `yaml:"route53"  mapstructure:"route53"`
}

// AuthConfig controls the Token Verifier capability (spec §4.E/§9).
type AuthConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // "static", "http"

	StaticTokens map[string]string `yaml:"static_tokens" mapstructure:"static_tokens"`

	IntrospectionURL string `yaml:"introspection_url" mapstructure:"introspection_url"`
	ClientID         string `yaml:"client_id"         mapstructure:"client_id"`
	ClientSecret     string `yaml:"client_secret"     mapstructure:"client_secret"`
	TokenURL         string `yaml:"token_url"         mapstructure:"token_url"`
}

// DatabaseConfig controls the persistence layer.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings, carried over unchanged from the
// teacher's ambient logging conventions.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// AdminConfig contains the ambient ops HTTP surface settings: health,
// readiness, and stats only, not the excluded registry query API.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"    mapstructure:"server"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`
	DNS       DNSConfig       `yaml:"dns"       mapstructure:"dns"`
	Auth      AuthConfig      `yaml:"auth"      mapstructure:"auth"`
	Database  DatabaseConfig  `yaml:"database"  mapstructure:"database"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	Admin     AdminConfig     `yaml:"admin"     mapstructure:"admin"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("PRISM_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides. This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (PRISM_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
