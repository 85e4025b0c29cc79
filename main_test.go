package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/defect-eval/config"
	"github.com/nvr-ai/defect-eval/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const gtDoc = `{
  "images": [
    {"id": 1, "file_name": "1.jpg", "height": 492, "width": 658},
    {"id": 2, "file_name": "2.jpg", "height": 3000, "width": 4096}
  ],
  "annotations": [
    {"image_id": 1, "category_id": 1, "bbox": [10, 10, 50, 50]},
    {"image_id": 2, "category_id": 7, "bbox": [1000, 1000, 500, 400]}
  ],
  "categories": [{"id": 1, "name": "broken cap"}]
}`

const predResults = `[
  {"image_id": 1, "category_id": 1, "bbox": [10, 10, 50, 50], "score": 0.9},
  {"image_id": 1, "category_id": 1, "bbox": [12, 12, 50, 50], "score": 0.3},
  {"image_id": 2, "category_id": 7, "bbox": [1000, 1000, 500, 400], "score": 0.8}
]`

func fixtures(t *testing.T) (gtPath, predPath string) {
	t.Helper()
	dir := t.TempDir()
	gtPath = filepath.Join(dir, "gt.json")
	predPath = filepath.Join(dir, "pred.json")
	require.NoError(t, os.WriteFile(gtPath, []byte(gtDoc), 0o600))
	require.NoError(t, os.WriteFile(predPath, []byte(predResults), 0o600))
	return gtPath, predPath
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags(flag.NewFlagSet("evaluate", flag.ContinueOnError), []string{
		"-gt", "a.json", "-pred", "b.json", "-workers", "0", "-format", "json",
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Workers = 3
	cfg.Strategy = "exclusive"
	o.apply(&cfg)

	assert.Equal(t, "a.json", cfg.GroundTruth)
	assert.Equal(t, "b.json", cfg.Predictions)
	assert.Equal(t, 0, cfg.Workers, "explicit zero overrides")
	assert.Equal(t, "exclusive", cfg.Strategy, "unset flags keep config values")
	assert.Equal(t, "json", cfg.Report.Format)
}

func TestLoadConfig(t *testing.T) {
	t.Run("requires inputs", func(t *testing.T) {
		o, err := parseFlags(flag.NewFlagSet("evaluate", flag.ContinueOnError), nil)
		require.NoError(t, err)
		_, err = loadConfig(o)
		assert.Error(t, err)
	})

	t.Run("flags win over environment", func(t *testing.T) {
		t.Setenv("DEFECT_EVAL_STRATEGY", "exclusive")
		t.Setenv("DEFECT_EVAL_POLICY", "legacy")
		o, err := parseFlags(flag.NewFlagSet("evaluate", flag.ContinueOnError), []string{
			"-gt", "a.json", "-pred", "b.json", "-strategy", "greedy",
		})
		require.NoError(t, err)

		cfg, err := loadConfig(o)
		require.NoError(t, err)
		assert.Equal(t, "greedy", cfg.Strategy)
		assert.Equal(t, "legacy", cfg.Policy)
	})

	t.Run("invalid value", func(t *testing.T) {
		o, err := parseFlags(flag.NewFlagSet("evaluate", flag.ContinueOnError), []string{
			"-gt", "a.json", "-pred", "b.json", "-overlap", "polygon",
		})
		require.NoError(t, err)
		_, err = loadConfig(o)
		assert.Error(t, err)
	})
}

func TestEvaluate(t *testing.T) {
	gtPath, predPath := fixtures(t)

	cfg := config.Default()
	cfg.GroundTruth = gtPath
	cfg.Predictions = predPath
	cfg.Workers = 2
	cfg.Report.Format = report.FormatJSON
	cfg.Report.PerImage = true

	var out bytes.Buffer
	require.NoError(t, evaluate(context.Background(), cfg, zap.NewNop(), false, &out))

	var summary report.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 2, summary.Images)
	assert.Equal(t, "broken cap", summary.Categories[0].Name, "names come from the annotation file")
	assert.Equal(t, "label wrinkle", summary.Categories[6].Name)
	require.Len(t, summary.PerImage, 2)
	assert.Equal(t, 1.0, summary.PerImage[0].AP)
	assert.Equal(t, 1.0, summary.PerImage[1].AP)
	assert.InDelta(t, 0.5*0.15+0.5*0.12, summary.Total, 1e-9)

	t.Run("report file and postprocess", func(t *testing.T) {
		cfg := cfg
		cfg.Report.Format = report.FormatTable
		cfg.Report.Output = filepath.Join(t.TempDir(), "report.txt")
		cfg.Postprocess.MinScore = 0.95

		require.NoError(t, evaluate(context.Background(), cfg, zap.NewNop(), false, &bytes.Buffer{}))
		data, err := os.ReadFile(cfg.Report.Output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "score: 0.000000", "every prediction is below the score floor")
	})

	t.Run("missing predictions", func(t *testing.T) {
		cfg := cfg
		cfg.Predictions = filepath.Join(t.TempDir(), "nope.json")
		assert.Error(t, evaluate(context.Background(), cfg, zap.NewNop(), false, &bytes.Buffer{}))
	})
}
