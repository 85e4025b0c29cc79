package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/nvr-ai/defect-eval/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	ev, err := cfg.Evaluation()
	require.NoError(t, err)
	assert.Equal(t, evaluation.StrategyGreedy, ev.Strategy)
	assert.Equal(t, evaluation.PolicyExcludeEmpty, ev.Policy)
	assert.Equal(t, evaluation.DefaultOverlapConfig(), ev.Overlap)
	assert.Equal(t, evaluation.DefaultWeights, ev.Weights)
	assert.Positive(t, ev.Workers)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "eval.yaml", `
groundTruth: data/annotations.json
strategy: exclusive
policy: legacy
overlap:
  mode: exact
  filter: lanczos
weights:
  1: 0.3
  10: 0
workers: 4
postprocess:
  minScore: 0.05
  nms: true
  iouThreshold: 0.6
report:
  format: json
  perImage: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/annotations.json", cfg.GroundTruth)
	assert.Equal(t, 1000, cfg.Overlap.DownsampleAbove, "unset fields keep defaults")
	assert.True(t, cfg.Report.PerImage)

	ev, err := cfg.Evaluation()
	require.NoError(t, err)
	assert.Equal(t, evaluation.StrategyExclusive, ev.Strategy)
	assert.Equal(t, evaluation.PolicyLegacy, ev.Policy)
	assert.Equal(t, evaluation.OverlapExact, ev.Overlap.Mode)
	assert.Equal(t, images.ResizeDownsampler{Filter: images.LanczosFilter}, ev.Overlap.Downsampler)
	assert.Equal(t, 0.3, ev.Weights.Of(1))
	assert.Equal(t, 0.0, ev.Weights.Of(10))
	assert.Equal(t, 0.09, ev.Weights.Of(2))
	assert.Equal(t, 4, ev.Workers)

	t.Run("empty path", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "workers: [1"))
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	path := writeFile(t, "eval.yaml", "strategy: exclusive\nworkers: 2\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	t.Setenv("DEFECT_EVAL_STRATEGY", "greedy")
	t.Setenv("DEFECT_EVAL_WORKERS", "8")
	t.Setenv("DEFECT_EVAL_NMS", "true")
	t.Setenv("DEFECT_EVAL_MIN_SCORE", "0.25")
	t.Setenv("DEFECT_EVAL_FORMAT", "json")
	t.Setenv("DEFECT_EVAL_POLICY", "")

	cfg.ApplyEnv()

	assert.Equal(t, "greedy", cfg.Strategy, "environment wins over the file")
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Postprocess.NMS)
	assert.Equal(t, 0.25, cfg.Postprocess.MinScore)
	assert.Equal(t, FormatJSON, cfg.Report.Format)
	assert.Equal(t, string(evaluation.PolicyExcludeEmpty), cfg.Policy, "empty variables are ignored")

	t.Run("unparsable numbers are ignored", func(t *testing.T) {
		t.Setenv("DEFECT_EVAL_WORKERS", "many")
		cfg.ApplyEnv()
		assert.Equal(t, 8, cfg.Workers)
	})
}

func TestLoadEnvFiles(t *testing.T) {
	path := writeFile(t, ".env", "DEFECT_EVAL_OVERLAP=exact\n")
	t.Setenv("DEFECT_EVAL_OVERLAP", "")
	require.NoError(t, os.Unsetenv("DEFECT_EVAL_OVERLAP"))

	require.NoError(t, LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), path))

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "exact", cfg.Overlap.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"strategy", func(c *Config) { c.Strategy = "hungarian" }},
		{"policy", func(c *Config) { c.Policy = "skip" }},
		{"overlap mode", func(c *Config) { c.Overlap.Mode = "polygon" }},
		{"filter", func(c *Config) { c.Overlap.Filter = "box" }},
		{"backend", func(c *Config) { c.Overlap.Backend = "pillow" }},
		{"weight category", func(c *Config) { c.Weights = map[int]float64{11: 0.1} }},
		{"weight range", func(c *Config) { c.Weights = map[int]float64{1: 1.5} }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"min score", func(c *Config) { c.Postprocess.MinScore = 2 }},
		{"nms threshold", func(c *Config) { c.Postprocess.NMS = true; c.Postprocess.IoUThreshold = 0 }},
		{"format", func(c *Config) { c.Report.Format = "csv" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel), "info hides debug")

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
