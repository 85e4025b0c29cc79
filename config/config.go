// Package config - Evaluation settings loaded from YAML with environment overrides.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/nvr-ai/defect-eval/images"
	"github.com/nvr-ai/defect-eval/postprocess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEFECT_EVAL_"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config is the full set of evaluation settings.
type Config struct {
	GroundTruth string `json:"groundTruth" yaml:"groundTruth"` // Path to the ground-truth annotation file.
	Predictions string `json:"predictions" yaml:"predictions"` // Path to the predictions file.

	Strategy string          `json:"strategy" yaml:"strategy"` // greedy | exclusive
	Policy   string          `json:"policy"   yaml:"policy"`   // exclude-empty | legacy
	Overlap  OverlapConfig   `json:"overlap"  yaml:"overlap"`
	Weights  map[int]float64 `json:"weights"  yaml:"weights"` // Category id -> weight, missing ids keep the default.
	Workers  int             `json:"workers"  yaml:"workers"` // 0 means one per CPU.

	Postprocess postprocess.Config `json:"postprocess" yaml:"postprocess"`
	Report      ReportConfig       `json:"report"      yaml:"report"`

	LogLevel string `json:"logLevel" yaml:"logLevel"`
}

// OverlapConfig selects the IoU computation.
type OverlapConfig struct {
	Mode            string `json:"mode"            yaml:"mode"` // raster | exact
	DownsampleAbove int    `json:"downsampleAbove" yaml:"downsampleAbove"`
	DownsampleSize  int    `json:"downsampleSize"  yaml:"downsampleSize"`
	Backend         string `json:"backend"         yaml:"backend"` // Downsampler backend, see images.DownsamplerBackends.
	Filter          string `json:"filter"          yaml:"filter"`  // Resample filter name.
}

// ReportConfig controls the rendered output.
type ReportConfig struct {
	Format   string `json:"format"   yaml:"format"` // table | json
	PerImage bool   `json:"perImage" yaml:"perImage"`
	Output   string `json:"output"   yaml:"output"` // Empty writes to stdout.
}

// Default returns the settings that reproduce the reference scores.
func Default() Config {
	overlap := evaluation.DefaultOverlapConfig()
	return Config{
		Strategy: string(evaluation.StrategyGreedy),
		Policy:   string(evaluation.PolicyExcludeEmpty),
		Overlap: OverlapConfig{
			Mode:            string(overlap.Mode),
			DownsampleAbove: overlap.DownsampleAbove,
			DownsampleSize:  overlap.DownsampleSize,
			Backend:         images.ResizeBackend,
			Filter:          images.BilinearFilter.String(),
		},
		Postprocess: postprocess.Config{IoUThreshold: 0.5},
		Report:      ReportConfig{Format: FormatTable},
		LogLevel:    "info",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load env file %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides fields from DEFECT_EVAL_* variables.
func (c *Config) ApplyEnv() {
	c.GroundTruth = getEnv("GT", c.GroundTruth)
	c.Predictions = getEnv("PRED", c.Predictions)
	c.Strategy = getEnv("STRATEGY", c.Strategy)
	c.Policy = getEnv("POLICY", c.Policy)
	c.Overlap.Mode = getEnv("OVERLAP", c.Overlap.Mode)
	c.Overlap.Backend = getEnv("DOWNSAMPLER", c.Overlap.Backend)
	c.Overlap.Filter = getEnv("FILTER", c.Overlap.Filter)
	c.Workers = getEnvAsInt("WORKERS", c.Workers)
	c.Postprocess.MinScore = getEnvAsFloat("MIN_SCORE", c.Postprocess.MinScore)
	c.Postprocess.NMS = getEnvAsBool("NMS", c.Postprocess.NMS)
	c.Postprocess.IoUThreshold = getEnvAsFloat("NMS_IOU", c.Postprocess.IoUThreshold)
	c.Report.Format = getEnv("FORMAT", c.Report.Format)
	c.Report.Output = getEnv("OUT", c.Report.Output)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks every enumerated and numeric field.
func (c Config) Validate() error {
	if _, err := c.Evaluation(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Overlap.DownsampleAbove < 0 || c.Overlap.DownsampleSize < 0 {
		return errors.New("downsample sizes must not be negative")
	}
	if p := c.Postprocess; p.MinScore < 0 || p.MinScore > 1 {
		return errors.Errorf("minScore %g is outside [0, 1]", p.MinScore)
	}
	if p := c.Postprocess; p.NMS && (p.IoUThreshold <= 0 || p.IoUThreshold > 1) {
		return errors.Errorf("NMS iouThreshold %g is outside (0, 1]", p.IoUThreshold)
	}
	switch strings.ToLower(c.Report.Format) {
	case FormatTable, FormatJSON:
	default:
		return errors.Errorf("unknown report format %q", c.Report.Format)
	}
	return nil
}

// Evaluation converts the settings into a scorer configuration. Logger and
// Progress are left for the caller.
func (c Config) Evaluation() (evaluation.Config, error) {
	cfg := evaluation.DefaultConfig()

	var err error
	if cfg.Strategy, err = evaluation.ParseMatchStrategy(c.Strategy); err != nil {
		return cfg, errors.Wrap(err, "strategy")
	}
	if cfg.Policy, err = evaluation.ParseRatioPolicy(c.Policy); err != nil {
		return cfg, errors.Wrap(err, "policy")
	}
	if cfg.Overlap.Mode, err = evaluation.ParseOverlapMode(c.Overlap.Mode); err != nil {
		return cfg, errors.Wrap(err, "overlap")
	}
	if c.Overlap.DownsampleAbove > 0 {
		cfg.Overlap.DownsampleAbove = c.Overlap.DownsampleAbove
	}
	if c.Overlap.DownsampleSize > 0 {
		cfg.Overlap.DownsampleSize = c.Overlap.DownsampleSize
	}

	filter := images.BilinearFilter
	if c.Overlap.Filter != "" {
		if filter, err = images.ParseResampleFilter(c.Overlap.Filter); err != nil {
			return cfg, errors.Wrap(err, "overlap")
		}
	}
	if cfg.Overlap.Downsampler, err = images.NewDownsampler(c.Overlap.Backend, filter); err != nil {
		return cfg, errors.Wrap(err, "overlap")
	}

	if cfg.Weights, err = evaluation.ParseWeights(c.Weights); err != nil {
		return cfg, errors.Wrap(err, "weights")
	}

	cfg.Workers = c.Workers
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
