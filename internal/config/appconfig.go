package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the flags+env configuration for the standalone demo binary,
// used in place of a host settings store when one isn't available.
type AppConfig struct {
	ListenerAddr    string
	User            string
	Password        string
	SocketTimeout   time.Duration
	ChunkSize       int
	LogFormat       string
	LogLevel        string
	MetricsAddr     string
	LogMetricsEvery time.Duration
	MdnsEnable      bool
	MdnsName        string
}

// ParseFlags parses os.Args, applies HTSPVR_* environment overrides for any
// flag not explicitly set, validates the result, and returns it. On an
// environment or validation error it prints the error itself and returns
// (nil, showVersion) so the caller can exit, mirroring the teacher's
// parseFlags.
func ParseFlags() (*AppConfig, bool) {
	cfg := &AppConfig{}
	listenerAddr := flag.String("listener", "localhost:9982", "Tvheadend HTSP listener address (host:port)")
	user := flag.String("user", "", "HTSP username")
	password := flag.String("password", "", "HTSP password")
	socketTimeout := flag.Duration("socket-timeout", DefaultSocketTimeout, "Per-call RPC timeout")
	chunkSize := flag.Int("chunk-size", DefaultChunkSize, "Default file read chunk size (bytes)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Discover the HTSP listener via mDNS/Avahi (_htsp._tcp) instead of -listener")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name to match; empty matches the first responder")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.ListenerAddr = *listenerAddr
	cfg.User = *user
	cfg.Password = *password
	cfg.SocketTimeout = *socketTimeout
	cfg.ChunkSize = *chunkSize
	cfg.LogFormat = *logFormat
	cfg.LogLevel = *logLevel
	cfg.MetricsAddr = *metricsAddr
	cfg.LogMetricsEvery = *logMetricsEvery
	cfg.MdnsEnable = *mdnsEnable
	cfg.MdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to dial the listener — only checks values/ranges.
func (c *AppConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.LogLevel)
	}
	if c.ListenerAddr == "" && !c.MdnsEnable {
		return errors.New("listener address is required unless mdns-enable is set")
	}
	if c.SocketTimeout <= 0 {
		return errors.New("socket-timeout must be > 0")
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk-size must be > 0")
	}
	return nil
}

// applyEnvOverrides maps HTSPVR_* environment variables to config fields
// unless a corresponding flag was explicitly set. Boolean & numeric parsing
// is lax: empty values are ignored. Duration accepts Go's
// time.ParseDuration format.
func applyEnvOverrides(c *AppConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["listener"]; !ok {
		if v, ok := get("HTSPVR_LISTENER"); ok && v != "" {
			c.ListenerAddr = v
		}
	}
	if _, ok := set["user"]; !ok {
		if v, ok := get("HTSPVR_USER"); ok {
			c.User = v
		}
	}
	if _, ok := set["password"]; !ok {
		if v, ok := get("HTSPVR_PASSWORD"); ok {
			c.Password = v
		}
	}
	if _, ok := set["socket-timeout"]; !ok {
		if v, ok := get("HTSPVR_SOCKET_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.SocketTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HTSPVR_SOCKET_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["chunk-size"]; !ok {
		if v, ok := get("HTSPVR_CHUNK_SIZE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.ChunkSize = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HTSPVR_CHUNK_SIZE: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("HTSPVR_LOG_FORMAT"); ok && v != "" {
			c.LogFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("HTSPVR_LOG_LEVEL"); ok && v != "" {
			c.LogLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("HTSPVR_METRICS"); ok {
			c.MetricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("HTSPVR_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.LogMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HTSPVR_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("HTSPVR_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.MdnsEnable = true
			case "0", "false", "no", "off":
				c.MdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("HTSPVR_MDNS_NAME"); ok && v != "" {
			c.MdnsName = v
		}
	}
	return firstErr
}
