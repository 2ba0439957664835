package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/smellgraph/internal/detect"
	"github.com/DeusData/smellgraph/internal/lang"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smellgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Build.Concurrency)
	assert.Equal(t, 10, cfg.Build.BatchSize)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Build.FileTimeout))
	assert.Equal(t, "text", cfg.Report.Format)
}

func TestLoadFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
log_level: debug
store:
  path: /tmp/graph.db
build:
  languages: [python, ts]
  exclude: ["vendor/", "*.gen.go"]
  concurrency: 8
  batch_size: 25
  file_timeout: 5s
  incremental: true
detect:
  include: [dead_code, god_class]
  thresholds:
    god_class_methods: 10
report:
  repo_url: https://github.com/o/r
  format: html
metrics:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/graph.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Build.Concurrency)
	assert.Equal(t, 25, cfg.Build.BatchSize)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Build.FileTimeout))
	assert.Equal(t, 60*time.Second, time.Duration(cfg.Build.BatchTimeout), "unset keys keep defaults")
	assert.True(t, cfg.Build.Incremental)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	opts := cfg.DiscoverOptions()
	assert.Equal(t, []lang.Language{lang.Python, lang.TypeScript}, opts.Languages)
	assert.Equal(t, []string{"vendor/", "*.gen.go"}, opts.Exclude)

	popts := cfg.PipelineOptions()
	assert.Equal(t, 8, popts.Concurrency)
	assert.True(t, popts.Incremental)

	th, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, 10.0, th.Float(detect.GodClassMethods))
	assert.Equal(t, 150.0, th.Float(detect.LongFunctionLines))
	assert.Equal(t, "https://github.com/o/r", cfg.Links().RepoURL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	cfg, err := Load("")
	require.NoError(t, err, "the default file is optional")
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SMELLGRAPH_BATCH_SIZE=3\n"), 0o600))
	t.Setenv("SMELLGRAPH_BATCH_SIZE", "")
	os.Unsetenv("SMELLGRAPH_BATCH_SIZE")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Build.BatchSize)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"SMELLGRAPH_LOG_LEVEL":                     "warn",
		"SMELLGRAPH_DB":                            "/data/g.db",
		"SMELLGRAPH_EXCLUDE":                       "a/, b/ ,",
		"SMELLGRAPH_CONCURRENCY":                   "2",
		"SMELLGRAPH_FILE_TIMEOUT":                  "1m",
		"SMELLGRAPH_INCREMENTAL":                   "true",
		"SMELLGRAPH_WRITES_PER_SECOND":             "50",
		"SMELLGRAPH_DETECT_EXCLUDE":                "dead_code",
		"SMELLGRAPH_THRESHOLD_FAN_IN":              "4",
		"SMELLGRAPH_THRESHOLD_LONG_FUNCTION_LINES": "80",
		"SMELLGRAPH_BRANCH":                        "dev",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/data/g.db", cfg.Store.Path)
	assert.Equal(t, []string{"a/", "b/"}, cfg.Build.Exclude)
	assert.Equal(t, 2, cfg.Build.Concurrency)
	assert.Equal(t, time.Minute, time.Duration(cfg.Build.FileTimeout))
	assert.True(t, cfg.Build.Incremental)
	assert.Equal(t, 50.0, cfg.Build.WritesPerSecond)
	assert.Equal(t, []string{"dead_code"}, cfg.Detect.Exclude)
	assert.Equal(t, map[string]float64{"fan_in": 4, "long_function_lines": 80}, cfg.Detect.Thresholds)
	assert.Equal(t, "dev", cfg.Report.Branch)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"SMELLGRAPH_CONCURRENCY":      "many",
		"SMELLGRAPH_THRESHOLD_FAN_IN": "lots",
	}))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 4, cfg.Build.Concurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		config bool // expects *detect.ConfigError rather than ErrInvalid
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"concurrency", func(c *Config) { c.Build.Concurrency = 0 }, false},
		{"batch size", func(c *Config) { c.Build.BatchSize = -1 }, false},
		{"timeout", func(c *Config) { c.Detect.Timeout = Duration(-time.Second) }, false},
		{"language", func(c *Config) { c.Build.Languages = []string{"cobol"} }, false},
		{"format", func(c *Config) { c.Report.Format = "pdf" }, false},
		{"unknown detector", func(c *Config) { c.Detect.Include = []string{"feature_envy"} }, true},
		{"unknown threshold", func(c *Config) { c.Detect.Thresholds = map[string]float64{"nope": 1} }, true},
		{"negative threshold", func(c *Config) { c.Detect.Thresholds = map[string]float64{"fan_in": -2} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.config {
				var ce *detect.ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(writeConfig(t, "build:\n  file_timeout: soon\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
