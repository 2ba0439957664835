// Package config loads smellgraph settings from a YAML file, a .env file and
// SMELLGRAPH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/smellgraph/internal/detect"
	"github.com/DeusData/smellgraph/internal/discover"
	"github.com/DeusData/smellgraph/internal/lang"
	"github.com/DeusData/smellgraph/internal/pipeline"
	"github.com/DeusData/smellgraph/internal/report"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "smellgraph.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SMELLGRAPH_"

// ErrInvalid marks an invalid configuration value.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration that unmarshals from "30s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalid, n.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Config is the full configuration.
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Store    Store   `yaml:"store"`
	Build    Build   `yaml:"build"`
	Detect   Detect  `yaml:"detect"`
	Report   Report  `yaml:"report"`
	Metrics  Metrics `yaml:"metrics"`
}

// Store configures the graph database.
type Store struct {
	// Path of the SQLite file; empty means the per-project cache path.
	Path string `yaml:"path"`
}

// Build configures graph construction.
type Build struct {
	Languages       []string `yaml:"languages"`
	Extensions      []string `yaml:"extensions"`
	Exclude         []string `yaml:"exclude"`
	Concurrency     int      `yaml:"concurrency"`
	BatchSize       int      `yaml:"batch_size"`
	FileTimeout     Duration `yaml:"file_timeout"`
	BatchTimeout    Duration `yaml:"batch_timeout"`
	WritesPerSecond float64  `yaml:"writes_per_second"`
	Incremental     bool     `yaml:"incremental"`
}

// Detect configures smell detection.
type Detect struct {
	Include     []string           `yaml:"include"`
	Exclude     []string           `yaml:"exclude"`
	Thresholds  map[string]float64 `yaml:"thresholds"`
	Concurrency int                `yaml:"concurrency"`
	Timeout     Duration           `yaml:"timeout"`
}

// Report configures report rendering.
type Report struct {
	RepoURL string `yaml:"repo_url"`
	Branch  string `yaml:"branch"`
	Format  string `yaml:"format"`
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Build: Build{
			Concurrency:  pipeline.DefaultConcurrency,
			BatchSize:    pipeline.DefaultBatchSize,
			FileTimeout:  Duration(pipeline.DefaultFileTimeout),
			BatchTimeout: Duration(pipeline.DefaultBatchTimeout),
		},
		Detect: Detect{
			Concurrency: detect.DefaultConcurrency,
			Timeout:     Duration(2 * time.Minute),
		},
		Report: Report{Format: report.FormatText},
	}
}

// Load reads path over the defaults, then applies a .env file from the
// working directory and the environment. An empty path reads DefaultFile
// when it exists. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		slog.Debug("config.load", "path", path)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from SMELLGRAPH_* variables. Lists are comma
// separated; thresholds use SMELLGRAPH_THRESHOLD_<KEY>.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, key, v))
				return
			}
			*dst = Duration(d)
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, key, v))
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("DB", &c.Store.Path)
	list("LANGUAGES", &c.Build.Languages)
	list("EXTENSIONS", &c.Build.Extensions)
	list("EXCLUDE", &c.Build.Exclude)
	num("CONCURRENCY", &c.Build.Concurrency)
	num("BATCH_SIZE", &c.Build.BatchSize)
	dur("FILE_TIMEOUT", &c.Build.FileTimeout)
	dur("BATCH_TIMEOUT", &c.Build.BatchTimeout)
	flag("INCREMENTAL", &c.Build.Incremental)
	if v, ok := lookup(EnvPrefix + "WRITES_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %sWRITES_PER_SECOND=%q", ErrInvalid, EnvPrefix, v))
		} else {
			c.Build.WritesPerSecond = f
		}
	}
	list("DETECT_INCLUDE", &c.Detect.Include)
	list("DETECT_EXCLUDE", &c.Detect.Exclude)
	num("DETECT_CONCURRENCY", &c.Detect.Concurrency)
	dur("DETECT_TIMEOUT", &c.Detect.Timeout)
	for _, key := range detect.ThresholdKeys() {
		name := "THRESHOLD_" + strings.ToUpper(key)
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalid, EnvPrefix, name, v))
			continue
		}
		if c.Detect.Thresholds == nil {
			c.Detect.Thresholds = map[string]float64{}
		}
		c.Detect.Thresholds[key] = f
	}
	str("REPO_URL", &c.Report.RepoURL)
	str("BRANCH", &c.Report.Branch)
	str("FORMAT", &c.Report.Format)
	str("METRICS_ADDR", &c.Metrics.Addr)
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks values that would otherwise fail mid-run. Detector names
// and threshold keys are checked as *detect.ConfigError.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Build.Concurrency < 1 {
		return fmt.Errorf("%w: build.concurrency must be at least 1, got %d", ErrInvalid, c.Build.Concurrency)
	}
	if c.Build.BatchSize < 1 {
		return fmt.Errorf("%w: build.batch_size must be at least 1, got %d", ErrInvalid, c.Build.BatchSize)
	}
	if c.Build.FileTimeout < 0 || c.Build.BatchTimeout < 0 || c.Detect.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	if c.Build.WritesPerSecond < 0 {
		return fmt.Errorf("%w: build.writes_per_second must not be negative", ErrInvalid)
	}
	for _, l := range c.Build.Languages {
		if _, ok := lang.Parse(l); !ok {
			return fmt.Errorf("%w: unknown language %q", ErrInvalid, l)
		}
	}
	if c.Detect.Concurrency < 1 {
		return fmt.Errorf("%w: detect.concurrency must be at least 1, got %d", ErrInvalid, c.Detect.Concurrency)
	}
	switch c.Report.Format {
	case "", report.FormatText, report.FormatHTML, report.FormatJSON:
	default:
		return fmt.Errorf("%w: report.format %q", ErrInvalid, c.Report.Format)
	}
	if _, err := detect.Default().Select(c.Detect.Include, c.Detect.Exclude); err != nil {
		return err
	}
	return detect.DefaultThresholds().Apply(c.Detect.Thresholds)
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, s)
}

// DiscoverOptions returns the discovery settings.
func (c *Config) DiscoverOptions() *discover.Options {
	opts := &discover.Options{Extensions: c.Build.Extensions, Exclude: c.Build.Exclude}
	for _, name := range c.Build.Languages {
		if l, ok := lang.Parse(name); ok {
			opts.Languages = append(opts.Languages, l)
		}
	}
	return opts
}

// PipelineOptions returns the build settings.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Concurrency:     c.Build.Concurrency,
		BatchSize:       c.Build.BatchSize,
		FileTimeout:     time.Duration(c.Build.FileTimeout),
		BatchTimeout:    time.Duration(c.Build.BatchTimeout),
		WritesPerSecond: c.Build.WritesPerSecond,
		Incremental:     c.Build.Incremental,
	}
}

// Thresholds returns the defaults with the configured overrides applied.
func (c *Config) Thresholds() (detect.Thresholds, error) {
	th := detect.DefaultThresholds()
	if err := th.Apply(c.Detect.Thresholds); err != nil {
		return nil, err
	}
	return th, nil
}

// Links returns the report link settings.
func (c *Config) Links() report.Links {
	return report.Links{RepoURL: c.Report.RepoURL, Branch: c.Report.Branch}
}
