// Package config loads server settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tilesuite/server/internal/observability"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/logging"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	TickRate    int    `yaml:"tick_rate"`
	Seed        string `yaml:"seed"`
	JournalPath string `yaml:"journal_path"`

	Commands      Commands      `yaml:"commands"`
	Content       Content       `yaml:"content"`
	Snapshot      Snapshot      `yaml:"snapshot"`
	Logging       Logging       `yaml:"logging"`
	Observability Observability `yaml:"observability"`
}

type Commands struct {
	Capacity      int `yaml:"capacity"`
	PerActorLimit int `yaml:"per_actor_limit"`
	WarningStep   int `yaml:"warning_step"`
}

// Content names the region document and extra graph libraries. An empty
// region selects the embedded demo.
type Content struct {
	Region    string   `yaml:"region"`
	Libraries []string `yaml:"libraries"`
}

type Snapshot struct {
	Path       string `yaml:"path"`
	EveryTicks int    `yaml:"every_ticks"`
}

type Logging struct {
	Sinks            []string          `yaml:"sinks"`
	MinimumSeverity  string            `yaml:"minimum_severity"`
	CategorySeverity map[string]string `yaml:"category_severity"`
	BufferSize       int               `yaml:"buffer_size"`
	JSONPath         string            `yaml:"json_path"`
	FlushInterval    time.Duration     `yaml:"flush_interval"`
}

type Observability struct {
	Metrics     bool   `yaml:"metrics"`
	PprofTrace  bool   `yaml:"pprof_trace"`
	ServiceName string `yaml:"service_name"`
}

func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		TickRate:    15,
		JournalPath: "data/journal.db",
		Commands: Commands{
			Capacity:      256,
			PerActorLimit: 32,
			WarningStep:   64,
		},
		Snapshot: Snapshot{
			Path:       "data/region.snap.zst",
			EveryTicks: 300,
		},
		Logging: Logging{
			Sinks:           []string{"console"},
			MinimumSeverity: "info",
			BufferSize:      512,
			FlushInterval:   2 * time.Second,
		},
		Observability: Observability{
			Metrics:     true,
			ServiceName: "tilesuite-server",
		},
	}
}

// Load reads path onto Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment. Unparseable values are
// reported to logger and ignored.
func (c *Config) ApplyEnv(getenv func(string) string, logger telemetry.Logger) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if raw := getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			c.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q", raw)
		}
	}
	if raw := getenv("LISTEN_ADDR"); raw != "" {
		c.ListenAddr = raw
	}
	if raw := getenv("JOURNAL_PATH"); raw != "" {
		c.JournalPath = raw
	}
	if raw := getenv("SNAPSHOT_PATH"); raw != "" {
		c.Snapshot.Path = raw
	}
	if raw := getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			c.Observability.PprofTrace = value
		} else {
			logger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be positive, got %d", c.TickRate))
	}
	if c.Snapshot.EveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot.every_ticks must not be negative, got %d", c.Snapshot.EveryTicks))
	}
	if c.Commands.Capacity < 0 || c.Commands.PerActorLimit < 0 || c.Commands.WarningStep < 0 {
		errs = append(errs, errors.New("commands limits must not be negative"))
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json":
		default:
			errs = append(errs, fmt.Errorf("unknown logging sink %q", sink))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoggingConfig converts the logging section for the router.
func (c Config) LoggingConfig() logging.Config {
	out := logging.DefaultConfig()
	if len(c.Logging.Sinks) > 0 {
		out.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	}
	if c.Logging.MinimumSeverity != "" {
		out.MinimumSeverity = logging.ParseSeverity(c.Logging.MinimumSeverity)
	}
	if len(c.Logging.CategorySeverity) > 0 {
		out.CategorySeverity = make(map[string]logging.Severity, len(c.Logging.CategorySeverity))
		for category, name := range c.Logging.CategorySeverity {
			out.CategorySeverity[category] = logging.ParseSeverity(name)
		}
	}
	if c.Logging.BufferSize > 0 {
		out.BufferSize = c.Logging.BufferSize
	}
	out.JSON.FilePath = c.Logging.JSONPath
	if c.Logging.FlushInterval > 0 {
		out.JSON.FlushInterval = c.Logging.FlushInterval
	}
	return out
}

func (c Config) ObservabilityConfig() observability.Config {
	return observability.Config{
		EnablePprofTrace: c.Observability.PprofTrace,
		Metrics:          c.Observability.Metrics,
		ServiceName:      c.Observability.ServiceName,
	}
}
