package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tilesuite/server/internal/telemetry"
	"tilesuite/server/logging"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
tick_rate: 30
content:
  region: regions/forest.yaml
  libraries: [lib/common.yaml]
snapshot:
  every_ticks: 60
logging:
  sinks: [console, json]
  json_path: logs/events.jsonl
  category_severity:
    behavior: debug
  flush_interval: 500ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRate != 30 || cfg.Snapshot.EveryTicks != 60 {
		t.Fatalf("expected overrides applied, got %+v", cfg)
	}
	if cfg.ListenAddr != ":8080" || cfg.Snapshot.Path != "data/region.snap.zst" || cfg.Commands.Capacity != 256 {
		t.Fatalf("expected untouched defaults, got %+v", cfg)
	}
	if cfg.Content.Region != "regions/forest.yaml" || len(cfg.Content.Libraries) != 1 {
		t.Fatalf("unexpected content section %+v", cfg.Content)
	}

	logCfg := cfg.LoggingConfig()
	if !logCfg.HasSink("json") || logCfg.JSON.FilePath != "logs/events.jsonl" || logCfg.JSON.FlushInterval != 500*time.Millisecond {
		t.Fatalf("unexpected logging config %+v", logCfg)
	}
	if logCfg.MinimumSeverity != logging.SeverityInfo {
		t.Fatalf("expected info severity, got %v", logCfg.MinimumSeverity)
	}
	if logCfg.CategorySeverity[logging.CategoryBehavior] != logging.SeverityDebug {
		t.Fatalf("expected behavior category at debug, got %v", logCfg.CategorySeverity)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRate != Default().TickRate {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{name: "tick-rate", body: "tick_rate: 0\n", want: "tick_rate"},
		{name: "sink", body: "logging:\n  sinks: [syslog]\n", want: "syslog"},
		{name: "snapshot", body: "snapshot:\n  every_ticks: -1\n", want: "every_ticks"},
		{name: "syntax", body: "tick_rate: [\n", want: "decode"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TICK_RATE":          "20",
		"LISTEN_ADDR":        "127.0.0.1:9000",
		"JOURNAL_PATH":       "/tmp/j.db",
		"SNAPSHOT_PATH":      "/tmp/s.zst",
		"ENABLE_PPROF_TRACE": "true",
	}
	cfg := Default()
	cfg.ApplyEnv(func(key string) string { return env[key] }, nil)
	if cfg.TickRate != 20 || cfg.ListenAddr != "127.0.0.1:9000" || cfg.JournalPath != "/tmp/j.db" || cfg.Snapshot.Path != "/tmp/s.zst" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.ObservabilityConfig().EnablePprofTrace {
		t.Fatalf("expected pprof enabled")
	}
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	var logged []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) { logged = append(logged, format) })
	env := map[string]string{"TICK_RATE": "fast", "ENABLE_PPROF_TRACE": "maybe"}

	cfg := Default()
	cfg.ApplyEnv(func(key string) string { return env[key] }, logger)
	if cfg.TickRate != Default().TickRate || cfg.Observability.PprofTrace {
		t.Fatalf("expected invalid values ignored, got %+v", cfg)
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(logged))
	}
}
