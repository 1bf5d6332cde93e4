package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "RAWHTTP"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Addrs        []string      `config:"addrs"`
	Workers      int           `config:"workers"`
	MaxConns     int           `config:"max.conns"`
	ReadTimeout  time.Duration `config:"read.timeout"`
	MaxBodyBytes int64         `config:"max.body.bytes"`
	ReusePort    bool          `config:"reuse.port"`
	GCPercent    int           `config:"gc.percent"`
	RateLimit    int           `config:"rate.limit"`
	RequestID    bool          `config:"request.id"`
	LogLevel     string        `config:"log.level"`
	Env          string        `config:"env"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addrs:        []string{"127.0.0.1:3001"},
		Workers:      16,
		MaxBodyBytes: 10 << 20,
		LogLevel:     "info",
		Env:          EnvDevelopment,
	}
}

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"addr":           "addrs",
	"workers":        "workers",
	"max-conns":      "max.conns",
	"read-timeout":   "read.timeout",
	"max-body-bytes": "max.body.bytes",
	"reuse-port":     "reuse.port",
	"gc-percent":     "gc.percent",
	"rate-limit":     "rate.limit",
	"request-id":     "request.id",
	"log-level":      "log.level",
	"env":            "env",
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// New loads configuration from the command line and environment and
// exits on error.
func New() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}
	return cfg
}

// Load builds a Config from defaults, an optional JSON file named by
// -config, RAWHTTP_* environment variables and explicitly set flags, in
// increasing order of precedence.
func Load(args []string) (*Config, error) {
	def := Default()

	fs := flag.NewFlagSet("rawhttp", flag.ContinueOnError)
	var addrs stringList
	configFile := fs.String("config", "", "JSON configuration file")
	fs.Var(&addrs, "addr", "bind address, repeatable (default "+strings.Join(def.Addrs, ",")+")")
	fs.Int("workers", def.Workers, "worker pool size")
	fs.Int("max-conns", def.MaxConns, "max simultaneous connections per listener, 0 for no limit")
	fs.Duration("read-timeout", def.ReadTimeout, "request read deadline, 0 for none")
	fs.Int64("max-body-bytes", def.MaxBodyBytes, "max request body size, 0 for no limit")
	fs.Bool("reuse-port", def.ReusePort, "set SO_REUSEPORT on listeners")
	fs.Int("gc-percent", def.GCPercent, "GOGC override, 0 keeps the runtime setting")
	fs.Int("rate-limit", def.RateLimit, "requests per second across all routes, 0 for no limit")
	fs.Bool("request-id", def.RequestID, "add a sequential X-Request-ID header to responses")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	fs.String("env", def.Env, "environment (development/production)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *configFile != "" {
		if err := m.LoadFromJSON(*configFile); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix)

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "addr" {
			m.Set("addrs", []string(addrs))
			return
		}
		if key, ok := flagKeys[f.Name]; ok {
			m.Set(key, f.Value.String())
		}
	})

	cfg := Default()
	if err := m.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error

	if len(c.Addrs) == 0 {
		errs = append(errs, errors.New("at least one bind address is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be greater than 0, got %d", c.Workers))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max.conns must not be negative, got %d", c.MaxConns))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read.timeout must not be negative, got %v", c.ReadTimeout))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max.body.bytes must not be negative, got %d", c.MaxBodyBytes))
	}
	if c.GCPercent < 0 {
		errs = append(errs, fmt.Errorf("gc.percent must not be negative, got %d", c.GCPercent))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate.limit must not be negative, got %d", c.RateLimit))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// IsProduction reports whether Env is production
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
