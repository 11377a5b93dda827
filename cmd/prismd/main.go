package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/prism-dns/prism/internal/config"
	"github.com/prism-dns/prism/internal/helpers"
	"github.com/prism-dns/prism/internal/logging"
	"github.com/prism-dns/prism/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "listen" {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values. Flags override the
// loaded config but never persist anywhere (spec §6's config priority:
// flags > env > file > defaults).
type cliFlags struct {
	configPath string
	dbPath     string
	host       string
	port       int
	jsonLogs   bool
	debug      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.dbPath, "db", "", "Override SQLite database path")
	flag.StringVar(&f.host, "host", "", "Override agent-facing bind host")
	flag.IntVar(&f.port, "port", 0, "Override agent-facing bind port")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	if f.host != "" {
		cfg.Server.BindHost = f.host
	}
	if f.port != 0 {
		cfg.Server.TCPPort = int(helpers.ClampIntToUint16(f.port))
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("prism starting",
		"database", cfg.Database.Path,
		"bind_host", cfg.Server.BindHost,
		"tcp_port", cfg.Server.TCPPort,
		"dns_enabled", cfg.DNS.Enabled,
	)
	logger.Info("rate limits", "effective", server.RateLimitsStartupLog())

	runner := server.NewRunner(logger)
	if err := runner.Run(cfg); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}
