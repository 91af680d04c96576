// Package config loads server settings from an optional YAML file and
// UAV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Live    LiveConfig    `yaml:"live"`
	Relay   RelayConfig   `yaml:"relay"`
	Influx  InfluxConfig  `yaml:"influx"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the domain store. Kind is memory or postgres.
type StoreConfig struct {
	Kind            string        `yaml:"kind"`
	DSN             string        `yaml:"dsn"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	Seed            bool          `yaml:"seed"`
}

// LiveConfig tunes live-channel connections. InboundRate is messages per
// second per connection; 0 means unlimited.
type LiveConfig struct {
	WriteWait    time.Duration `yaml:"write_wait"`
	ReadLimit    int64         `yaml:"read_limit"`
	InboundRate  float64       `yaml:"inbound_rate"`
	SendQueue    int           `yaml:"send_queue"`
	InboundBurst int           `yaml:"inbound_burst"`
}

// RelayConfig enables cross-instance fan-out when RedisURL is set.
type RelayConfig struct {
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

// InfluxConfig enables the telemetry mirror when URL is set.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
	Enabled     bool   `yaml:"enabled"`
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Kind:            StoreMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Seed:            true,
		},
		Live: LiveConfig{
			SendQueue: 64,
			WriteWait: 10 * time.Second,
			ReadLimit: 64 << 10,
		},
		Relay: RelayConfig{
			Channel: "uav:live",
		},
		Influx: InfluxConfig{
			Org:    "fleet",
			Bucket: "telemetry",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "uav-fleet-server",
		},
	}
}

// Load reads path over Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Listen = getenv("UAV_LISTEN", c.Server.Listen)
	c.Store.Kind = getenv("UAV_STORE", c.Store.Kind)
	c.Store.DSN = getenv("UAV_DATABASE_URL", c.Store.DSN)
	c.Relay.RedisURL = getenv("UAV_REDIS_URL", c.Relay.RedisURL)
	c.Relay.Channel = getenv("UAV_RELAY_CHANNEL", c.Relay.Channel)
	c.Influx.URL = getenv("UAV_INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getenv("UAV_INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getenv("UAV_INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getenv("UAV_INFLUX_BUCKET", c.Influx.Bucket)
	c.Logging.Level = getenv("UAV_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenv("UAV_LOG_FORMAT", c.Logging.Format)

	var err error
	if c.Store.Seed, err = getbool("UAV_SEED", c.Store.Seed); err != nil {
		return err
	}
	if c.Tracing.Enabled, err = getbool("UAV_TRACING", c.Tracing.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("UAV_INBOUND_RATE"); v != "" {
		if c.Live.InboundRate, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("UAV_INBOUND_RATE: %w", err)
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind %q is not memory or postgres", c.Store.Kind))
	}
	if c.Live.SendQueue <= 0 {
		errs = append(errs, errors.New("live.send_queue must be positive"))
	}
	if c.Live.WriteWait <= 0 {
		errs = append(errs, errors.New("live.write_wait must be positive"))
	}
	if c.Live.ReadLimit <= 0 {
		errs = append(errs, errors.New("live.read_limit must be positive"))
	}
	if c.Live.InboundRate < 0 {
		errs = append(errs, errors.New("live.inbound_rate must not be negative"))
	}
	if c.Relay.RedisURL != "" && c.Relay.Channel == "" {
		errs = append(errs, errors.New("relay.channel is required with a redis url"))
	}
	if c.Influx.URL != "" && c.Influx.Bucket == "" {
		errs = append(errs, errors.New("influx.bucket is required with an influx url"))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("logging.format %q is not json or text", f))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", s, err)
	}
	return level, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
