package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trendfilter/internal/filter"
	"trendfilter/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "info" || c.Log.Format != "console" {
		t.Errorf("log defaults = %q/%q, want info/console", c.Log.Level, c.Log.Format)
	}
	if c.Server.Listen != ":8080" || c.Server.MetricsListen != ":9090" {
		t.Errorf("server defaults = %q/%q", c.Server.Listen, c.Server.MetricsListen)
	}
	if c.SQLite.Path != "data/trendfilter.db" {
		t.Errorf("sqlite path = %q", c.SQLite.Path)
	}
	if c.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
	if c.Redis.StreamMaxLen != 10000 {
		t.Errorf("stream max len = %d, want 10000", c.Redis.StreamMaxLen)
	}

	prof, ok := c.Profiles["default"]
	if !ok {
		t.Fatal("default profile missing")
	}
	if got, want := prof.Params(), filter.DefaultParams(); got != want {
		t.Errorf("default profile params = %+v, want %+v", got, want)
	}
}

func TestLoad_ProfileOverridesResolveAgainstDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
profiles:
  scalp:
    type: catchup
    quantity: 1.5
    scale: ticks
    smooth_range: false
    average_values: true
    average_samples: 5
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", c.Log.Level)
	}

	p := c.Profiles["scalp"].Params()
	if p.Type != filter.TypeCatchup || p.Quantity != 1.5 || p.Scale != filter.ScaleTicks {
		t.Errorf("overridden fields not applied: %+v", p)
	}
	if p.SmoothRange {
		t.Error("smooth_range: false should override the default true")
	}
	if !p.AverageValues || p.AverageSamples != 5 {
		t.Errorf("averaging fields not applied: %+v", p)
	}
	// Untouched fields keep engine defaults.
	def := filter.DefaultParams()
	if p.Source != def.Source || p.Period != def.Period || p.SmoothPeriod != def.SmoothPeriod {
		t.Errorf("unset fields should keep defaults: %+v", p)
	}

	if _, ok := c.Profiles["default"]; !ok {
		t.Error("default profile should be added alongside named ones")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRENDFILTER_LOG_LEVEL", "warn")
	t.Setenv("TRENDFILTER_SQLITE_PATH", "/tmp/alt.db")
	t.Setenv("TRENDFILTER_REDIS_ADDR", "redis:6379")
	t.Setenv("TRENDFILTER_REDIS_DB", "3")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", c.Log.Level)
	}
	if c.SQLite.Path != "/tmp/alt.db" {
		t.Errorf("sqlite path = %q", c.SQLite.Path)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" || c.Redis.DB != 3 {
		t.Errorf("redis env overrides not applied: %+v", c.Redis)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad profile type", "profiles:\n  x:\n    type: elastic\n"},
		{"bad profile quantity", "profiles:\n  x:\n    quantity: -1\n"},
		{"bad profile period", "profiles:\n  x:\n    period: 0\n"},
		{"malformed yaml", "profiles: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if !errors.Is(err, model.ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
