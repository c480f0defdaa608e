// Package config centralizes process configuration for the taskstats
// binaries. Tunables come from three layers, lowest precedence first:
//
//  1. an optional YAML file (-config or TASKSTATS_CONFIG),
//  2. environment variables, optionally seeded from a .env file,
//  3. command-line flags.
//
// Flags are defined with the lower layers as their defaults, so `-help`
// shows the effective values.
//
// Typical usage:
//
//	cfg, err := config.Load() // os.Args, os.Environ, ./.env
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-addr=:9090"})
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all process configuration. All fields are plain values so the
// struct can be copied and shared after construction.
type Config struct {
	Addr     string  `yaml:"addr"`
	Storage  Storage `yaml:"storage"`
	Timezone string  `yaml:"timezone"` // IANA zone used for "today" in delay reports

	WorkloadLimit  int      `yaml:"workload_limit"`   // default top-N for workload-employee
	MaxUploadBytes int64    `yaml:"max_upload_bytes"` // multipart body cap
	CORSOrigins    []string `yaml:"cors_origins"`
	UploadRate     float64  `yaml:"upload_rate"`  // uploads per second, 0 = unlimited
	UploadBurst    int      `yaml:"upload_burst"` // token bucket size

	Metrics Metrics `yaml:"metrics"`

	// File is the YAML file the values were seeded from, if any.
	File string `yaml:"-"`
}

// Storage selects the persistence backend.
type Storage struct {
	Kind        string `yaml:"kind"` // sqlite, postgres, mysql, mssql
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string        `yaml:"backend"` // none, prompush, datadog
	JobName        string        `yaml:"job_name"`
	PushgatewayURL string        `yaml:"pushgateway_url"`
	DatadogAddr    string        `yaml:"datadog_addr"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr: ":8080",
		Storage: Storage{
			Kind:        "sqlite",
			DSN:         "taskstats.db",
			Table:       "employee_tasks",
			AutoMigrate: true,
		},
		Timezone:       "UTC",
		WorkloadLimit:  3,
		MaxUploadBytes: 32 << 20,
		CORSOrigins:    []string{"*"},
		UploadRate:     5,
		UploadBurst:    10,
		Metrics: Metrics{
			Backend:       "none",
			JobName:       "taskstats",
			FlushInterval: 15 * time.Second,
		},
	}
}

// Location resolves Timezone, falling back to UTC when empty.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LoadFromArgs defines the flags on fs, seeds their defaults from the YAML
// file and getenv, and parses args. Callers may define extra flags on fs
// before calling.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := Defaults()

	path := configPath(getenv, args)
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.File = path
	}

	str := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	num := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	num64 := func(k string, d int64) int64 {
		if v := getenv(k); v != "" {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
		}
		return d
	}
	float := func(k string, d float64) float64 {
		if v := getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return d
	}
	boolean := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}
	dur := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if p, err := time.ParseDuration(v); err == nil {
				return p
			}
		}
		return d
	}

	var origins string
	fs.String("config", path, "YAML config file (env TASKSTATS_CONFIG)")
	fs.StringVar(&cfg.Addr, "addr", str("TASKSTATS_ADDR", cfg.Addr), "HTTP listen address")
	fs.StringVar(&cfg.Storage.Kind, "storage", str("TASKSTATS_STORAGE_KIND", cfg.Storage.Kind), "Storage backend: sqlite, postgres, mysql, mssql")
	fs.StringVar(&cfg.Storage.DSN, "dsn", str("TASKSTATS_DSN", cfg.Storage.DSN), "Storage DSN")
	fs.StringVar(&cfg.Storage.Table, "table", str("TASKSTATS_TABLE", cfg.Storage.Table), "Task table name")
	fs.BoolVar(&cfg.Storage.AutoMigrate, "auto_migrate", boolean("TASKSTATS_AUTO_MIGRATE", cfg.Storage.AutoMigrate), "Create the task table on startup")
	fs.StringVar(&cfg.Timezone, "timezone", str("TASKSTATS_TIMEZONE", cfg.Timezone), "Time zone for the delay report's 'today'")
	fs.IntVar(&cfg.WorkloadLimit, "workload_limit", num("TASKSTATS_WORKLOAD_LIMIT", cfg.WorkloadLimit), "Default number of employees in the workload report")
	fs.Int64Var(&cfg.MaxUploadBytes, "max_upload_bytes", num64("TASKSTATS_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes), "Maximum upload body size")
	fs.StringVar(&origins, "cors_origins", str("TASKSTATS_CORS_ORIGINS", strings.Join(cfg.CORSOrigins, ",")), "Comma-separated allowed CORS origins")
	fs.Float64Var(&cfg.UploadRate, "upload_rate", float("TASKSTATS_UPLOAD_RATE", cfg.UploadRate), "Uploads per second (0 = unlimited)")
	fs.IntVar(&cfg.UploadBurst, "upload_burst", num("TASKSTATS_UPLOAD_BURST", cfg.UploadBurst), "Upload burst size")
	fs.StringVar(&cfg.Metrics.Backend, "metrics", str("TASKSTATS_METRICS_BACKEND", cfg.Metrics.Backend), "Metrics backend: none, prompush, datadog")
	fs.StringVar(&cfg.Metrics.JobName, "metrics_job", str("TASKSTATS_METRICS_JOB", cfg.Metrics.JobName), "Metrics job name")
	fs.StringVar(&cfg.Metrics.PushgatewayURL, "pushgateway_url", str("TASKSTATS_PUSHGATEWAY_URL", cfg.Metrics.PushgatewayURL), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.Metrics.DatadogAddr, "datadog_addr", str("TASKSTATS_DATADOG_ADDR", cfg.Metrics.DatadogAddr), "DogStatsD address")
	fs.DurationVar(&cfg.Metrics.FlushInterval, "metrics_flush", dur("TASKSTATS_METRICS_FLUSH", cfg.Metrics.FlushInterval), "Metrics flush interval")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(origins)
	return &cfg, nil
}

// Load is the production entry point: flag.CommandLine, os.Getenv layered
// over ./.env, and os.Args[1:].
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, WithDotEnv(os.Getenv, ".env"), os.Args[1:])
}

// WithDotEnv returns a getenv that falls back to the values in the given
// .env files when the real environment has no value. Missing files are
// ignored.
func WithDotEnv(getenv func(string) string, paths ...string) func(string) string {
	vals := map[string]string{}
	for _, p := range paths {
		m, err := godotenv.Read(p)
		if err != nil {
			continue
		}
		for k, v := range m {
			if _, seen := vals[k]; !seen {
				vals[k] = v
			}
		}
	}
	return func(k string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return vals[k]
	}
}

// configPath finds the YAML path from -config/--config in args, falling back
// to TASKSTATS_CONFIG. Flags are parsed later; this pre-scan only needs the
// file so its values can seed the flag defaults.
func configPath(getenv func(string) string, args []string) string {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv("TASKSTATS_CONFIG")
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
