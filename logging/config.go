package logging

import (
	"slices"
	"time"
)

// Config selects the sinks a Router fans events out to, the severity floors
// and how much it buffers.
type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// CategorySeverity overrides MinimumSeverity for single categories, e.g.
	// debug for behavior while everything else stays at info.
	CategorySeverity map[string]Severity
	Fields           map[string]any
	JSON             JSONConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON:             JSONConfig{FlushInterval: 2 * time.Second},
	}
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

// floor returns the minimum severity forwarded for category.
func (c Config) floor(category string) Severity {
	if sev, ok := c.CategorySeverity[category]; ok {
		return sev
	}
	return c.MinimumSeverity
}

func cloneMap[V any](in map[string]V) map[string]V {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
