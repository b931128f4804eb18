// Package config loads otcd settings from a TOML file, OTC_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"otc-swaps/internal/domain"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the daemon configuration.
type Config struct {
	ListenAddr      string        `toml:"listen_addr"`
	ProgramID       string        `toml:"program_id"` // empty uses the built-in program id
	Storage         string        `toml:"storage"`    // memory | postgres
	PostgresDSN     string        `toml:"postgres_dsn"`
	ClickhouseDSN   string        `toml:"clickhouse_dsn"` // optional analytics mirror
	DevMode         bool          `toml:"dev_mode"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	Feed FeedConfig `toml:"feed"`
}

// FeedConfig configures the websocket event feed.
type FeedConfig struct {
	SendBuffer   int           `toml:"send_buffer"`
	PingInterval time.Duration `toml:"ping_interval"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		Storage:         StorageMemory,
		MaxBodyBytes:    64 << 10,
		ShutdownTimeout: 15 * time.Second,
		Feed: FeedConfig{
			SendBuffer:   256,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  60 * time.Second,
		},
	}
}

// Load resolves the configuration for args: defaults, then the file named by
// -config or OTC_CONFIG, then environment, then flags.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	// First pass only discovers -config; every flag is registered so none is unknown.
	pre := Default()
	preFS, prePath := newFlagSet(pre, getenv("OTC_CONFIG"))
	preFS.SetOutput(io.Discard)
	if err := preFS.Parse(args); err != nil {
		// Reparse with output enabled so usage and the error reach stderr.
		fs, _ := newFlagSet(Default(), "")
		return nil, fs.Parse(args)
	}

	if *prePath != "" {
		if err := LoadFile(*prePath, cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	fs, _ := newFlagSet(cfg, *prePath)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, configPath string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("otcd", flag.ContinueOnError)
	path := fs.String("config", configPath, "TOML config file")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	fs.StringVar(&cfg.ProgramID, "program-id", cfg.ProgramID, "Program id used to derive swap addresses")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend (memory, postgres)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string for the event mirror")
	fs.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "Enable /v1/dev ledger seeding routes")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "Maximum request body size")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	fs.IntVar(&cfg.Feed.SendBuffer, "feed-send-buffer", cfg.Feed.SendBuffer, "Per-subscriber feed queue length")
	fs.DurationVar(&cfg.Feed.PingInterval, "feed-ping-interval", cfg.Feed.PingInterval, "Feed ping interval")
	return fs, path
}

// LoadFile decodes a TOML file over cfg. Unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides cfg with OTC_* variables. POSTGRES_DSN and CLICKHOUSE_DSN are accepted as fallbacks.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	str(&cfg.ListenAddr, "OTC_LISTEN_ADDR")
	str(&cfg.ProgramID, "OTC_PROGRAM_ID")
	str(&cfg.Storage, "OTC_STORAGE")
	str(&cfg.PostgresDSN, "OTC_POSTGRES_DSN", "POSTGRES_DSN")
	str(&cfg.ClickhouseDSN, "OTC_CLICKHOUSE_DSN", "CLICKHOUSE_DSN")

	if v := getenv("OTC_DEV_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTC_DEV_MODE: %w", err)
		}
		cfg.DevMode = b
	}
	if v := getenv("OTC_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("OTC_MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := getenv("OTC_FEED_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OTC_FEED_SEND_BUFFER: %w", err)
		}
		cfg.Feed.SendBuffer = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"OTC_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"OTC_FEED_PING_INTERVAL", &cfg.Feed.PingInterval},
		{"OTC_FEED_WRITE_TIMEOUT", &cfg.Feed.WriteTimeout},
		{"OTC_FEED_READ_TIMEOUT", &cfg.Feed.ReadTimeout},
	}
	for _, d := range durations {
		if v := getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("storage postgres requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}

	if c.ProgramID != "" {
		if _, err := domain.ParseIdentity(c.ProgramID); err != nil {
			errs = append(errs, fmt.Errorf("program_id: %w", err))
		}
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if c.Feed.SendBuffer <= 0 {
		errs = append(errs, errors.New("feed.send_buffer must be positive"))
	}
	if c.Feed.PingInterval <= 0 || c.Feed.WriteTimeout <= 0 || c.Feed.ReadTimeout <= 0 {
		errs = append(errs, errors.New("feed intervals must be positive"))
	}

	return errors.Join(errs...)
}

// ProgramIdentity returns the parsed program id, or the zero identity when unset.
func (c *Config) ProgramIdentity() domain.Identity {
	if c.ProgramID == "" {
		return domain.Identity{}
	}
	id, _ := domain.ParseIdentity(c.ProgramID)
	return id
}

// LoadEnvFile sets variables from a KEY=VALUE file. Existing variables win.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // File doesn't exist, use system env vars
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return nil
}
