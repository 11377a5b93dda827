// Package config provides configuration loading and validation for Prism.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/prismd/main.go)
//  2. Environment variables (PRISM_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// Environment variables are mapped from PRISM_CATEGORY_SETTING format,
// e.g., PRISM_SERVER_TCP_PORT maps to server.tcp_port in YAML.
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variable binding: PRISM_SERVER_TCP_PORT -> server.tcp_port
	v.SetEnvPrefix("PRISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.bind_host", "0.0.0.0")
	v.SetDefault("server.tcp_port", 7946)
	v.SetDefault("server.max_connections", 10000)
	v.SetDefault("server.auth_deadline", "10s")
	v.SetDefault("server.idle_deadline", "90s")

	v.SetDefault("heartbeat.heartbeat_interval", "60s")
	v.SetDefault("heartbeat.check_interval", "30s")
	v.SetDefault("heartbeat.timeout_multiplier", 2)
	v.SetDefault("heartbeat.grace_period", "30s")

	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.backend", "memory")
	v.SetDefault("dns.zone", "")
	v.SetDefault("dns.rollout_percent", 100)
	v.SetDefault("dns.record_ttl", 300)
	v.SetDefault("dns.workers", 4)
	v.SetDefault("dns.powerdns.base_url", "")
	v.SetDefault("dns.powerdns.api_key", "")
	v.SetDefault("dns.route53.hosted_zone_id", "")
	v.SetDefault("dns.fallback_to_mock", false)

	v.SetDefault("auth.mode", "static")
	v.SetDefault("auth.static_tokens", map[string]string{})
	v.SetDefault("auth.introspection_url", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.token_url", "")

	v.SetDefault("database.path", "prism.db")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.api_key", "")
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadServerConfig(v, cfg)
	loadHeartbeatConfig(v, cfg)
	loadDNSConfig(v, cfg)
	loadAuthConfig(v, cfg)
	loadDatabaseConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadAdminConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadServerConfig(v *viper.Viper, cfg *Config) {
	cfg.Server.BindHost = v.GetString("server.bind_host")
	cfg.Server.TCPPort = v.GetInt("server.tcp_port")
	cfg.Server.MaxConnections = v.GetInt("server.max_connections")
	cfg.Server.AuthDeadline = v.GetString("server.auth_deadline")
	cfg.Server.IdleDeadline = v.GetString("server.idle_deadline")
}

func loadHeartbeatConfig(v *viper.Viper, cfg *Config) {
	cfg.Heartbeat.Interval = v.GetString("heartbeat.heartbeat_interval")
	cfg.Heartbeat.CheckInterval = v.GetString("heartbeat.check_interval")
	cfg.Heartbeat.TimeoutMultiplier = v.GetInt("heartbeat.timeout_multiplier")
	cfg.Heartbeat.GracePeriod = v.GetString("heartbeat.grace_period")
}

func loadDNSConfig(v *viper.Viper, cfg *Config) {
	cfg.DNS.Enabled = v.GetBool("dns.enabled")
	cfg.DNS.Backend = v.GetString("dns.backend")
	cfg.DNS.Zone = v.GetString("dns.zone")
	cfg.DNS.RolloutPercent = v.GetInt("dns.rollout_percent")
	cfg.DNS.RecordTTL = v.GetInt("dns.record_ttl")
	cfg.DNS.Workers = v.GetInt("dns.workers")
	cfg.DNS.PowerDNS.BaseURL = v.GetString("dns.powerdns.base_url")
	cfg.DNS.PowerDNS.APIKey = v.GetString("dns.powerdns.api_key")
	cfg.DNS.Route53.HostedZoneID = v.GetString("dns.route53.hosted_zone_id")
	cfg.DNS.FallbackToMock = v.GetBool("dns.fallback_to_mock")
}

func loadAuthConfig(v *viper.Viper, cfg *Config) {
	cfg.Auth.Mode = v.GetString("auth.mode")
	cfg.Auth.StaticTokens = v.GetStringMapString("auth.static_tokens")
	cfg.Auth.IntrospectionURL = v.GetString("auth.introspection_url")
	cfg.Auth.ClientID = v.GetString("auth.client_id")
	cfg.Auth.ClientSecret = v.GetString("auth.client_secret")
	cfg.Auth.TokenURL = v.GetString("auth.token_url")
}

func loadDatabaseConfig(v *viper.Viper, cfg *Config) {
	cfg.Database.Path = v.GetString("database.path")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

func loadAdminConfig(v *viper.Viper, cfg *Config) {
	cfg.Admin.Enabled = v.GetBool("admin.enabled")
	cfg.Admin.Host = v.GetString("admin.host")
	cfg.Admin.Port = v.GetInt("admin.port")
	cfg.Admin.APIKey = v.GetString("admin.api_key")
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.Server.TCPPort <= 0 || cfg.Server.TCPPort > 65535 {
		return errors.New("server.tcp_port must be 1..65535")
	}
	if cfg.Server.MaxConnections <= 0 {
		return errors.New("server.max_connections must be > 0")
	}

	switch cfg.Auth.Mode {
	case "static", "http":
	default:
		return fmt.Errorf("auth.mode must be 'static' or 'http', got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "http" && cfg.Auth.IntrospectionURL == "" {
		return errors.New("auth.introspection_url is required when auth.mode is 'http'")
	}

	if cfg.DNS.Enabled {
		switch cfg.DNS.Backend {
		case "memory", "powerdns", "route53":
		default:
			return fmt.Errorf("dns.backend must be 'memory', 'powerdns' or 'route53', got %q", cfg.DNS.Backend)
		}
		if cfg.DNS.Zone == "" {
			return errors.New("dns.zone is required when dns.enabled is true")
		}
		if cfg.DNS.Backend == "powerdns" && cfg.DNS.PowerDNS.BaseURL == "" {
			return errors.New("dns.powerdns.base_url is required when dns.backend is 'powerdns'")
		}
		if cfg.DNS.Backend == "route53" && cfg.DNS.Route53.HostedZoneID == "" {
			return errors.New("dns.route53.hosted_zone_id is required when dns.backend is 'route53'")
		}
	}
	if cfg.DNS.RolloutPercent < 0 || cfg.DNS.RolloutPercent > 100 {
		return errors.New("dns.rollout_percent must be 0..100")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.Admin.Host == "" {
		cfg.Admin.Host = "127.0.0.1"
	}
	if cfg.Admin.Enabled {
		if cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535 {
			return errors.New("admin.port must be 1..65535")
		}
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "prism.db"
	}

	return nil
}
